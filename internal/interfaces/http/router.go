package http

import (
	"github.com/gofiber/fiber/v2"

	appverifactu "github.com/SgeoCrg/facturandozen-sub000/internal/application/verifactu"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/certstore"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orchestrator *appverifactu.Orchestrator
	CertStore    *certstore.Store
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Verifactu (protegido)
	verifactuHandler := NewVerifactuHandler(deps.Orchestrator)
	invoices := protected.Group("/invoices")
	invoices.Post("/:id/verifactu/submit", verifactuHandler.Submit)
	invoices.Get("/:id/verifactu", verifactuHandler.GetRecord)

	// Certificado de firma del tenant (protegido)
	certHandler := NewCertificateHandler(deps.CertStore)
	tenant := protected.Group("/tenant")
	tenant.Put("/certificate", certHandler.Upload)
	tenant.Delete("/certificate", certHandler.Delete)
}
