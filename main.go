package main

import (
	"database/sql"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	a2ax "github.com/claimr-app/claimr-mesh/agent/a2a"
	callbotx "github.com/claimr-app/claimr-mesh/agent/agents/callbot"
	echox "github.com/claimr-app/claimr-mesh/agent/agents/echo"
	failsafex "github.com/claimr-app/claimr-mesh/agent/agents/failsafe"
	formbotx "github.com/claimr-app/claimr-mesh/agent/agents/formbot"
	orchestratorx "github.com/claimr-app/claimr-mesh/agent/agents/orchestrator"
	callstatusx "github.com/claimr-app/claimr-mesh/agent/callstatus"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
	serverx "github.com/claimr-app/claimr-mesh/agent/server"
	vendorx "github.com/claimr-app/claimr-mesh/agent/vendor"
	configx "github.com/claimr-app/claimr-mesh/pkg/config"
	_ "github.com/claimr-app/claimr-mesh/pkg/logger/autoload"
	resendx "github.com/claimr-app/claimr-mesh/pkg/resend"
	twiliox "github.com/claimr-app/claimr-mesh/pkg/twilio"
)

type AppConfig struct {
	Addr        string `split_words:"true" default:":8080"`
	A2AHost     string `envconfig:"A2A_HOST" required:"true"`
	BaseURL     string `split_words:"true" required:"true"`
	DatabaseURL string `split_words:"true" required:"true"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(appCfg.DatabaseURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ledgerStore, err := ledgerx.NewBunStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("init ledger store")
	}
	rmaStore, err := rmax.NewBunStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("init rma store")
	}
	callStatusStore, err := callstatusx.NewBunStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("init call status store")
	}

	registry := vendorx.NewRegistry(*configx.MustNew[vendorx.Config](""))

	directory, err := a2ax.NewStaticDirectory(appCfg.A2AHost,
		contractx.AgentOrchestrator,
		contractx.AgentTraceRoute,
		contractx.AgentFormBot,
		contractx.AgentCallBot,
		contractx.AgentFailsafe,
		contractx.AgentEcho,
		contractx.AgentLedger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("init agent directory")
	}
	transport, err := a2ax.NewTransport(directory)
	if err != nil {
		log.Fatal().Err(err).Msg("init a2a transport")
	}

	twilioClient := twiliox.MustNew(*configx.MustNew[twiliox.Config]("TWILIO"))
	resendClient := resendx.MustNew(*configx.MustNew[resendx.Config]("RESEND"))

	callbot, err := callbotx.New(twilioClient, registry, callStatusStore, ledgerStore, rmaStore, callbotx.Config{
		FlowURL: appCfg.BaseURL + "/api/twilio/callflow",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init callbot")
	}

	formbot, err := formbotx.New(registry, vendorx.NewSubmitter(), transport, ledgerStore, rmaStore)
	if err != nil {
		log.Fatal().Err(err).Msg("init formbot")
	}

	failsafe, err := failsafex.New(ledgerStore)
	if err != nil {
		log.Fatal().Err(err).Msg("init failsafe")
	}

	notifier, err := echox.New(resendClient, ledgerStore)
	if err != nil {
		log.Fatal().Err(err).Msg("init echo notifier")
	}

	orchestrator, err := orchestratorx.New(rmaStore, ledgerStore, formbot, failsafe, notifier)
	if err != nil {
		log.Fatal().Err(err).Msg("init orchestrator")
	}

	srv, err := serverx.New(orchestrator, formbot, callbot, failsafe, notifier, ledgerStore, rmaStore, callStatusStore)
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}

	log.Info().Str("addr", appCfg.Addr).Msg("claimr mesh listening")
	if err := http.ListenAndServe(appCfg.Addr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
