package payment

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/billing-xendit/internal/obs"
	"github.com/noah-isme/billing-xendit/internal/resilience"
)

// Deps are the collaborators a gateway instance is wired with.
type Deps struct {
	Invoices     InvoiceService
	Ledger       ClientLedger
	Transactions TransactionStore
	Serializer   Serializer
	LockTTL      time.Duration
	Events       EventEmitter
	Replay       ReplayStore
	ReplayTTL    time.Duration
	HTTP         resilience.HTTPClient

	BaseURL         string
	GatewayID       string
	CallbackBaseURL string
	PublicBaseURL   string
	MaxItemTitles   int
	Logger          zerolog.Logger
}

// Gateway is one configured Xendit adapter instance.
type Gateway struct {
	Credentials Credentials
	Client      Xendit
	Engine      *Engine
	Checkout    *Checkout
	Webhook     Webhook
	Handler     *Handler
}

// NewGateway resolves credentials and assembles the adapter. A missing credential
// returns a *ConfigurationError and no gateway.
func NewGateway(s Settings, deps Deps) (*Gateway, error) {
	creds, err := ResolveCredentials(s)
	if err != nil {
		return nil, err
	}
	diag := obs.GatewayLogger(deps.Logger, "xendit", creds.EnableLogging)
	if creds.Sandbox {
		diag = diag.With().Bool("sandbox", true).Logger()
	}

	client := Xendit{
		BaseURL: deps.BaseURL,
		APIKey:  creds.APIKey,
		HTTP:    deps.HTTP,
		Logger:  diag,
	}
	engine := &Engine{
		Transactions: deps.Transactions,
		Invoices:     deps.Invoices,
		Ledger:       deps.Ledger,
		GatewayID:    deps.GatewayID,
		Serializer:   deps.Serializer,
		LockTTL:      deps.LockTTL,
		Events:       deps.Events,
		Logger:       diag,
	}
	checkout := &Checkout{
		Invoices:        deps.Invoices,
		Creator:         client,
		GatewayID:       deps.GatewayID,
		CallbackBaseURL: deps.CallbackBaseURL,
		PublicBaseURL:   deps.PublicBaseURL,
		MaxItemTitles:   deps.MaxItemTitles,
		Logger:          diag,
	}
	return &Gateway{
		Credentials: creds,
		Client:      client,
		Engine:      engine,
		Checkout:    checkout,
		Webhook: Webhook{
			Engine:      engine,
			Auth:        NewWebhookAuthenticator(creds.WebhookToken),
			Replay:      deps.Replay,
			ReplayTTL:   deps.ReplayTTL,
			Logger:      deps.Logger,
			Diagnostics: diag,
		},
		Handler: &Handler{
			Checkout:      checkout,
			Redirect:      engine,
			PublicBaseURL: deps.PublicBaseURL,
			Logger:        deps.Logger,
		},
	}, nil
}
