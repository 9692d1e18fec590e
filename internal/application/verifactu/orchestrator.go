package verifactu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/repository"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/aeat"
	"github.com/SgeoCrg/facturandozen-sub000/pkg/kmutex"
	"github.com/SgeoCrg/facturandozen-sub000/pkg/logger"
	pkgverifactu "github.com/SgeoCrg/facturandozen-sub000/pkg/verifactu"
)

// Config parámetros del orquestador.
type Config struct {
	// Environment: "dev" no envía a la AEAT (acepta simulado); "test"/"prod"
	// usan el submitter real.
	Environment string
}

// Orchestrator orquesta el ciclo completo del registro Verifactu:
//
//	Huella encadenada → XML → Firma XAdES → Envío WS AEAT → Update DB
//
// Garantías:
//   - Como máximo un envío en vuelo por factura (estado "sent" + update condicional).
//   - Los envíos de un mismo tenant se serializan (mutex por tenant) para que
//     dos facturas nunca calculen la misma huella anterior.
//   - Reenviar una factura ya aceptada es idempotente: devuelve el registro
//     sin segundo envío.
type Orchestrator struct {
	invoiceRepo repository.InvoiceRepository
	tenantRepo  repository.TenantRepository
	recordRepo  repository.VerifactuRecordRepository
	creds       CredentialProvider
	xmlBuilder  *aeat.XMLBuilderService
	signer      pkgverifactu.Signer
	submitter   aeat.AEATSubmitter // nil solo en modo dev
	huella      *pkgverifactu.HuellaCalculatorService
	cfg         Config
	log         *logger.Logger

	locks kmutex.KeyedMutex[string] // serialización por tenant

	now func() time.Time // inyectable en tests
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
// submitter puede ser nil: en ese caso solo funciona el modo dev.
func NewOrchestrator(
	invoiceRepo repository.InvoiceRepository,
	tenantRepo repository.TenantRepository,
	recordRepo repository.VerifactuRecordRepository,
	creds CredentialProvider,
	xmlBuilder *aeat.XMLBuilderService,
	signer pkgverifactu.Signer,
	submitter aeat.AEATSubmitter,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		invoiceRepo: invoiceRepo,
		tenantRepo:  tenantRepo,
		recordRepo:  recordRepo,
		creds:       creds,
		xmlBuilder:  xmlBuilder,
		signer:      signer,
		submitter:   submitter,
		huella:      pkgverifactu.NewHuellaCalculatorService(),
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// GetRecord devuelve el registro Verifactu de la factura para la vista de
// detalle, o domain.ErrNotFound si aún no se ha solicitado ningún envío.
func (o *Orchestrator) GetRecord(ctx context.Context, tenantID, invoiceID string) (*entity.VerifactuRecord, error) {
	inv, err := o.invoiceRepo.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	rec, err := o.recordRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// SubmitInvoice ejecuta el envío Verifactu de la factura y devuelve el
// registro resultante. Si el registro ya está aceptado lo devuelve sin tocar
// nada; si hay un envío en vuelo devuelve domain.ErrSubmissionInProgress.
// Para estados error/rejected reutiliza la misma fila (nunca crea duplicados).
func (o *Orchestrator) SubmitInvoice(ctx context.Context, tenantID, invoiceID string) (*entity.VerifactuRecord, error) {
	// Serializar por tenant: la huella anterior depende del último registro
	// persistido, así que dos envíos concurrentes del mismo tenant deben
	// ejecutarse uno detrás de otro.
	o.locks.Lock(tenantID)
	defer o.locks.Unlock(tenantID)

	log := o.log.WithTenant(tenantID)

	inv, err := o.invoiceRepo.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("cargar factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	rec, err := o.recordRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("cargar registro: %w", err)
	}
	if rec != nil {
		switch rec.Status {
		case entity.VerifactuStatusAccepted:
			// Idempotente: ya aceptada, no hay segundo envío
			return rec, nil
		case entity.VerifactuStatusSent:
			return nil, domain.ErrSubmissionInProgress
		}
	}

	tenant, err := o.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("cargar tenant: %w", err)
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}

	// ── 1. Cálculo puro: huella encadenada + XML sin firmar ──────────────────
	// Los errores de datos de entrada se rechazan aquí, antes de mutar estado.
	tail, err := o.recordRepo.GetChainTail(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("cola de la cadena: %w", err)
	}
	previousHash := ""
	if tail != nil {
		previousHash = tail.Hash
	}

	hash, err := o.huella.Calculate(&pkgverifactu.HuellaParams{
		NIFEmisor:      tenant.NIF,
		NumSerie:       inv.FullNumber,
		FechaEmision:   inv.Date.Format("02-01-2006"),
		NIFDestino:     inv.CustomerNIF,
		ImporteTotal:   inv.Total,
		HuellaAnterior: previousHash,
	})
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInvoiceData)
	}

	generatedAt := o.now()
	xmlUnsigned, err := o.xmlBuilder.Build(&aeat.RegistroBuildContext{
		Invoice:      inv,
		Tenant:       tenant,
		Hash:         hash,
		PreviousHash: previousHash,
		GeneratedAt:  generatedAt,
	})
	if err != nil {
		return nil, err
	}

	// ── 2. Crear el registro en pending si es el primer intento ──────────────
	if rec == nil {
		rec = &entity.VerifactuRecord{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			InvoiceID: invoiceID,
			Status:    entity.VerifactuStatusPending,
			CreatedAt: generatedAt,
			UpdatedAt: generatedAt,
		}
		if err := o.recordRepo.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// Carrera con otro proceso: el registro ya existe
				return nil, domain.ErrSubmissionInProgress
			}
			return nil, fmt.Errorf("crear registro: %w", err)
		}
	}

	// ── 3. Certificado del tenant (fail fast antes de reclamar el envío) ─────
	cert, err := o.creds.GetDecrypted(ctx, tenantID)
	if err != nil {
		// Requiere acción del tenant (subir/renovar certificado); no se
		// reintenta automáticamente pero el registro queda con la traza.
		o.markError(ctx, rec, "certificado", err)
		return rec, err
	}

	// ── 4. Reclamar el envío: transición condicional a "sent" ────────────────
	sentAt := o.now()
	rec.Hash = hash
	rec.PreviousHash = previousHash
	rec.XMLUnsigned = string(xmlUnsigned)
	rec.SentAt = &sentAt
	rec.Status = entity.VerifactuStatusSent
	rec.UpdatedAt = sentAt
	claimed, err := o.recordRepo.ClaimSending(ctx, rec, []string{
		entity.VerifactuStatusPending,
		entity.VerifactuStatusError,
		entity.VerifactuStatusRejected,
	})
	if err != nil {
		return nil, fmt.Errorf("reclamar envío: %w", err)
	}
	if !claimed {
		// Otro intento concurrente ganó la transición
		return nil, domain.ErrSubmissionInProgress
	}

	// ── 5. Firma XAdES ───────────────────────────────────────────────────────
	signedXML, err := o.signer.Sign(xmlUnsigned, cert)
	if err != nil {
		o.markError(ctx, rec, "firma", err)
		return rec, err
	}
	rec.XMLSigned = string(signedXML)

	// ── 6. Envío al WS AEAT ──────────────────────────────────────────────────
	var result *aeat.SubmitResult
	if o.cfg.Environment == aeat.AppEnvDev {
		// Modo desarrollo: no llamar al WS, simular aceptación
		log.Info().Str("invoice_id", invoiceID).Msg("[DEV] simulando aceptación AEAT")
		result = &aeat.SubmitResult{Accepted: true, CSV: "DEV" + rec.ID[:8], Raw: "simulado"}
	} else {
		if o.submitter == nil {
			err := fmt.Errorf("submitter AEAT no configurado para entorno %q", o.cfg.Environment)
			o.markError(ctx, rec, "config", err)
			return rec, err
		}
		result, err = o.submitter.Submit(ctx, signedXML)
		if err != nil {
			// Fallo transitorio con reintentos agotados: recuperable, un
			// SubmitInvoice posterior reutiliza esta misma fila.
			o.markError(ctx, rec, "envío", err)
			return rec, nil
		}
	}

	// ── 7. Persistir resultado final ─────────────────────────────────────────
	rec.AeatResponse = result.Raw
	rec.UpdatedAt = o.now()
	if result.Accepted {
		rec.Status = entity.VerifactuStatusAccepted
		rec.AeatCSV = result.CSV
		rec.ErrorMessage = ""
		qr, qrErr := aeat.GenerateQR(o.cfg.Environment, inv, tenant.NIF, result.CSV)
		if qrErr != nil {
			// El registro está aceptado ante la AEAT; el QR se puede regenerar
			log.Warn().Err(qrErr).Str("invoice_id", invoiceID).Msg("no se pudo generar el QR")
		} else {
			rec.QRCode = qr
		}
		log.Info().Str("invoice_id", invoiceID).Str("csv", result.CSV).Msg("registro aceptado por la AEAT")
	} else {
		// Rechazo de negocio: requiere corregir la factura y reenviar a mano
		rec.Status = entity.VerifactuStatusRejected
		rec.ErrorMessage = result.ErrorMessage
		log.Warn().Str("invoice_id", invoiceID).Str("errores", result.ErrorMessage).Msg("registro rechazado por la AEAT")
	}

	if err := o.recordRepo.Finalize(ctx, rec); err != nil {
		return nil, fmt.Errorf("persistir estado final: %w", err)
	}
	return rec, nil
}

// markError transiciona el registro a "error" con la traza del problema.
// Nunca se pierde un fallo: la UI siempre puede explicar el estado actual.
func (o *Orchestrator) markError(ctx context.Context, rec *entity.VerifactuRecord, step string, cause error) {
	rec.Status = entity.VerifactuStatusError
	rec.ErrorMessage = cause.Error()
	rec.UpdatedAt = o.now()
	log := o.log.WithTenant(rec.TenantID)
	if err := o.recordRepo.Finalize(ctx, rec); err != nil {
		log.Error().Err(err).Str("invoice_id", rec.InvoiceID).Msg("no se pudo persistir el estado error")
	}
	log.Error().Err(cause).Str("invoice_id", rec.InvoiceID).Str("paso", step).Msg("envío Verifactu fallido")
}
