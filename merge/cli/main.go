package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	log "github.com/Sirupsen/logrus"
	_ "github.com/lib/pq"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/courscan/catalog-backend/banweb"
	"github.com/courscan/catalog-backend/common/conf"
	"github.com/courscan/catalog-backend/common/metrics"
	"github.com/courscan/catalog-backend/common/model"
	"github.com/courscan/catalog-backend/common/redis"
	"github.com/courscan/catalog-backend/merge"
)

type mergeApp struct {
	app          *kingpin.ApplicationModel
	config       *mergeConfig
	synchronizer *merge.Synchronizer
	ctx          context.Context
}

type mergeConfig struct {
	service     conf.Config
	inputFormat string
	termCode    string
	subjectCode string
}

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.DebugLevel)
}

func main() {
	app := kingpin.New("merge", "A command-line application for reconciling scraped course catalogs into postgres")

	format := app.Flag("format", "Choose input format").
		Short('f').
		HintOptions(model.Json).
		PlaceHolder("[json]").
		Default(model.Json).
		String()

	metricsAddr := app.Flag("metrics", "Address for the prometheus endpoint").
		Default(":13001").
		String()

	configFile := app.Flag("config", "Configuration file for the application").
		Required().
		Short('c').
		File()

	daemonCmd := app.Command("daemon", "Reconcile snapshots from the redis queue, forever")

	runCmd := app.Command("run", "Scrape the portal and reconcile in one pass")
	term := runCmd.Flag("term", "Reconcile a single term").
		Short('t').
		String()
	subject := runCmd.Flag("subject", "Reconcile a single subject, requires --term").
		Short('s').
		String()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Parse configuration file
	config := conf.OpenConfigWithName(*configFile, app.Name)

	// Start profiling
	go model.StartPprof(config.DebugServer(app.Name))

	go metrics.Serve(*metricsAddr)

	database, err := model.OpenPostgres(config.DatabaseConfig(app.Name))
	if err != nil {
		log.WithError(err).Fatalln()
	}
	database.SetMaxOpenConns(config.Postgres.ConnMax)

	ma := &mergeApp{
		app: app.Model(),
		config: &mergeConfig{
			service:     config,
			inputFormat: *format,
			termCode:    *term,
			subjectCode: *subject,
		},
		synchronizer: merge.NewSynchronizer(merge.NewPostgresStore(app.Name, database)),
		ctx:          context.TODO(),
	}

	if ma.config.termCode == "" {
		ma.config.termCode = config.Scrape.TermCode
	}
	if ma.config.subjectCode == "" {
		ma.config.subjectCode = config.Scrape.SubjectCode
	}

	switch command {
	case daemonCmd.FullCommand():
		ma.daemon()
	case runCmd.FullCommand():
		ma.run()
	}
}

// daemon blocks on the snapshot queue and reconciles each snapshot as it
// arrives. A bad snapshot is logged and dropped; the loop never stops.
func (ma *mergeApp) daemon() {
	helper := redis.NewHelper(ma.config.service, ma.app.Name)

	for {
		log.Infoln("waiting on queue...")

		data, err := helper.PopSnapshot()
		if err != nil {
			log.WithError(err).Fatalln()
		}

		ma.process(data)
	}
}

func (ma *mergeApp) process(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("recovered from error in queue loop: %v", r)).Errorln()
		}
	}()

	var snap model.Snapshot
	if err := model.UnmarshalSnapshot(ma.config.inputFormat, bytes.NewReader(data), &snap); err != nil {
		log.WithError(err).Errorln("error while unmarshalling snapshot")
		return
	}

	ma.synchronizer.SyncSnapshot(snap)
}

func (ma *mergeApp) run() {
	conn := banweb.NewConnection(ma.config.service.Source)
	if err := conn.Authenticate(ma.ctx); err != nil {
		log.WithError(err).Fatalln("failed to authenticate")
	}

	scraper := banweb.NewScraper(conn, ma.locations())

	scope := merge.Scope{
		TermCode:    ma.config.termCode,
		SubjectCode: ma.config.subjectCode,
	}

	results, err := ma.synchronizer.Sync(ma.ctx, scraper, scope)
	if err != nil {
		log.WithError(err).Fatalln()
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	log.WithFields(log.Fields{
		"units":  len(results),
		"failed": failed,
	}).Infoln("run complete")

	if failed > 0 {
		os.Exit(1)
	}
}

func (ma *mergeApp) locations() *banweb.LocationTable {
	if ma.config.service.Scrape.BuildingFile == "" {
		return nil
	}

	locations, err := banweb.LoadLocations(ma.config.service.Scrape.BuildingFile)
	if err != nil {
		log.WithError(err).Fatalln("failed to load building tables")
	}

	return locations
}
