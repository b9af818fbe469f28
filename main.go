package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	apptax "github.com/Zhima-Mochi/minishop-checkout/internal/application/tax"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/kafkarelay"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/mail"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores groups the persistence ports selected by STORE_DRIVER.
type stores struct {
	products    dominventory.Repository
	orders      domorder.Repository
	accountCart domcart.Repository
	taxRates    domtax.RateProvider
	seed        func(context.Context, []*dominventory.Product) error
	close       func() error
}

// sessionBackend holds guest sessions and guest carts.
type sessionBackend struct {
	sessions interface {
		domcart.SessionStore
		httppresentation.SessionIssuer
	}
	guestCart domcart.Repository
	close     func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.MustNewLogger("minishop-checkout", "dev").Fatal("config_load_failed", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	counters, histograms := prometrics.Standard(prometrics.New("minishop", "checkout"))
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		systemLogger.Fatal("store_open_failed", zap.String("driver", string(cfg.StoreDriver)), zap.Error(err))
	}
	defer func() { _ = st.close() }()
	if cfg.Env == "dev" {
		if err := st.seed(ctx, demoCatalog(cfg.DefaultCurrency)); err != nil {
			systemLogger.Fatal("catalog_seed_failed", zap.Error(err))
		}
	}

	sb, err := openSessions(ctx, cfg)
	if err != nil {
		systemLogger.Fatal("session_store_open_failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	defer func() { _ = sb.close() }()

	fallback, err := domtax.ParseTable(cfg.TaxFallbackRates)
	if err != nil {
		systemLogger.Fatal("tax_fallback_parse_failed", zap.Error(err))
	}
	rates := apptax.NewChainProvider(st.taxRates, fallback, apptax.ChainConfig{
		FallbackOnStoreError: cfg.TaxFallbackOnStoreError,
	}, tel)

	webhookSecret := cfg.GatewayWebhookSecret
	if webhookSecret == "" {
		webhookSecret = ephemeralSecret()
		systemLogger.Warn("gateway_webhook_secret_ephemeral")
	}
	callbacks := gateway.NewSigner(webhookSecret)

	var paymentGateway dompayment.Gateway
	if cfg.GatewayBaseURL != "" {
		paymentGateway = gateway.NewClient(gateway.Config{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
			Timeout: cfg.GatewayTimeout,
		})
	} else {
		systemLogger.Warn("payment_gateway_simulated")
		paymentGateway = gateway.NewSimulator("http://localhost"+cfg.HTTPAddr, callbacks)
	}

	bus := outbox.NewBus(tel.Logger(), outbox.WithContextDecorator(workerpresentation.EventDecorator(tel.Logger())))
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	resolver := appcart.NewResolver(st.accountCart, sb.guestCart, sb.sessions, tel)
	createOrder := apporder.NewCreateOrderUseCase(apporder.CreateOrderDeps{
		Carts:     resolver,
		Inventory: appinventory.NewValidator(st.products, cfg.DefaultCurrency, tel),
		Assembler: apporder.NewAssembler(apptax.NewCalculator(rates, tel)),
		Repo:      st.orders,
		Gateway:   paymentGateway,
		IDs:       id.NewUUIDGenerator(),
		Publisher: bus,
	}, apporder.CreateOrderOptions{
		Currency:       cfg.DefaultCurrency,
		GatewayTimeout: cfg.GatewayTimeout,
	}, tel)

	appcart.NewWorker(bus, resolver, tel).Start()

	if len(cfg.KafkaBrokers) > 0 {
		sink := kafkarelay.NewSink(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
		defer func() { _ = sink.Close() }()
		apporder.NewWorker(bus, sink, tel).Start()
	}

	var notifier apppayment.Notifier = mail.NewLogNotifier(tel)
	if cfg.SendGridAPIKey != "" {
		sg, err := mail.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.ReceiptFromEmail)
		if err != nil {
			systemLogger.Fatal("receipt_notifier_failed", zap.Error(err))
		}
		notifier = sg
	}
	apppayment.NewWorker(bus, notifier, tel).Start()

	go apppayment.NewSweeper(st.orders, bus, cfg.PaymentPendingTTL, tel).Run(ctx)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = ephemeralSecret()
		systemLogger.Warn("jwt_secret_ephemeral")
	}

	handler := httppresentation.NewHandler(httppresentation.UseCases{
		CreateOrder:  createOrder,
		GetOrder:     apporder.NewGetOrderUseCase(st.orders, tel),
		ChangeStatus: apporder.NewChangeStatusUseCase(st.orders, bus, tel),
		RetryPayment: apporder.NewRetryPaymentUseCase(st.orders, paymentGateway, cfg.GatewayTimeout, tel),
		Callback:     apppayment.NewHandleCallbackUseCase(st.orders, bus, tel),
	}, sb.sessions, httppresentation.NewAuthenticator(jwtSecret), callbacks, promhttp.Handler(), tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", string(cfg.StoreDriver)),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		products := memory.NewInventoryRepository()
		return &stores{
			products:    products,
			orders:      memory.NewOrderRepository(products),
			accountCart: memory.NewCartRepository(),
			taxRates:    memory.NewTaxRateStore(),
			seed: func(ctx context.Context, catalog []*dominventory.Product) error {
				for _, p := range catalog {
					if err := products.Save(ctx, p); err != nil {
						return err
					}
				}
				return nil
			},
			close: func() error { return nil },
		}, nil
	}

	db, err := sqlstore.Open(ctx, sqlstore.Driver(cfg.StoreDriver), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	products := sqlstore.NewProductStore(db)
	return &stores{
		products:    products,
		orders:      sqlstore.NewOrderStore(db),
		accountCart: sqlstore.NewCartStore(db),
		taxRates:    sqlstore.NewTaxRateStore(db),
		seed: func(ctx context.Context, catalog []*dominventory.Product) error {
			for _, p := range catalog {
				if _, err := products.Get(ctx, p.ID); err == nil {
					continue
				}
				if err := products.Save(ctx, p); err != nil {
					return err
				}
			}
			return nil
		},
		close: db.Close,
	}, nil
}

// openSessions keeps guest state in Redis when REDIS_ADDR is set so it expires with
// the session; otherwise it stays in process.
func openSessions(ctx context.Context, cfg config.Config) (*sessionBackend, error) {
	if cfg.RedisAddr == "" {
		return &sessionBackend{
			sessions:  memory.NewSessionStore(),
			guestCart: memory.NewCartRepository(),
			close:     func() error { return nil },
		}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &sessionBackend{
		sessions:  redisstore.NewSessionStore(client),
		guestCart: redisstore.NewCartStore(client),
		close:     client.Close,
	}, nil
}

// ephemeralSecret stands in for an unset secret in dev. Anything signed with it stops
// verifying after a restart.
func ephemeralSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func demoCatalog(currency string) []*dominventory.Product {
	return []*dominventory.Product{
		{ID: "sku-tee", Name: "Logo Tee", Price: 1800, Currency: currency, Stock: 50, Active: true, Category: "apparel"},
		{ID: "sku-mug", Name: "Enamel Mug", Price: 1200, Currency: currency, Stock: 20, Active: true, Category: "kitchen"},
		{ID: "sku-ebook", Name: "Field Guide (ebook)", Price: 900, Currency: currency, Stock: 1000, Active: true, Category: "digital", Jurisdiction: "US-OR"},
		{ID: "sku-retired", Name: "Retired Poster", Price: 500, Currency: currency, Stock: 3, Active: false, Category: "decor"},
	}
}
