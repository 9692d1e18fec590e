package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appverifactu "github.com/SgeoCrg/facturandozen-sub000/internal/application/verifactu"
	infraaeat "github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/aeat"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/aeat/signer"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/certstore"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/postgres"
	httpRouter "github.com/SgeoCrg/facturandozen-sub000/internal/interfaces/http"
	"github.com/SgeoCrg/facturandozen-sub000/pkg/config"
	"github.com/SgeoCrg/facturandozen-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   "info",
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("aeat_env", cfg.AEAT.Environment).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	tenantRepo := postgres.NewTenantRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)
	recordRepo := postgres.NewVerifactuRecordRepository(pool)

	certStore, err := certstore.New(certRepo, cfg.Cert.MasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("almacén de certificados")
	}

	xmlBuilder := infraaeat.NewXMLBuilderService()
	signerSvc := signer.NewDigitalSignatureService()

	// Cliente SOAP AEAT — solo se usa si el entorno es "test" o "prod".
	// En modo "dev" el orquestador no lo invoca.
	var submitter infraaeat.AEATSubmitter
	if cfg.AEAT.Environment != infraaeat.AppEnvDev {
		client, err := infraaeat.NewSOAPClient(infraaeat.ClientConfig{
			Environment: cfg.AEAT.Environment,
			BaseURL:     cfg.AEAT.BaseURL,
			Timeout:     time.Duration(cfg.AEAT.TimeoutSeconds) * time.Second,
			MaxRetries:  cfg.AEAT.MaxRetries,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("cliente SOAP AEAT")
		}
		submitter = client
	}

	// Orquestador Verifactu: Huella encadenada → XML → XAdES → Envío WS → Update DB
	orchestrator := appverifactu.NewOrchestrator(
		invoiceRepo, tenantRepo, recordRepo,
		certStore, xmlBuilder, signerSvc, submitter,
		appverifactu.Config{Environment: cfg.AEAT.Environment},
		log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "FacturandoZen Verifactu API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: orchestrator,
		CertStore:    certStore,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
