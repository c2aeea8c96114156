package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	log "github.com/Sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/courscan/catalog-backend/banweb"
	"github.com/courscan/catalog-backend/common/conf"
	"github.com/courscan/catalog-backend/common/model"
	"github.com/courscan/catalog-backend/common/redis"
)

type scrapeApp struct {
	app    *kingpin.ApplicationModel
	config *scrapeConfig
	ctx    context.Context
}

type scrapeConfig struct {
	service      conf.Config
	termCode     string
	subjectCode  string
	outputFormat string
	queue        bool
}

func init() {
	log.SetFormatter(&log.TextFormatter{})
}

func main() {
	app := kingpin.New("banweb", "A program for scraping course information from a Banner self-service portal.")

	term := app.Flag("term", "Scrape a single term").
		Short('t').
		Envar("BANWEB_TERM").
		String()

	subject := app.Flag("subject", "Scrape a single subject, requires --term").
		Short('s').
		Envar("BANWEB_SUBJECT").
		String()

	format := app.Flag("format", "Choose output format").
		Short('f').
		HintOptions(model.Json).
		PlaceHolder("[json]").
		Default(model.Json).
		String()

	queue := app.Flag("queue", "Push snapshots onto the redis queue instead of stdout").
		Short('q').
		Bool()

	configFile := app.Flag("config", "Configuration file for the application").
		Required().
		Short('c').
		File()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Parse configuration file
	config := conf.OpenConfigWithName(*configFile, app.Name)

	// Start profiling
	go model.StartPprof(config.DebugServer(app.Name))

	sa := &scrapeApp{
		app: app.Model(),
		config: &scrapeConfig{
			service:      config,
			termCode:     *term,
			subjectCode:  *subject,
			outputFormat: *format,
			queue:        *queue,
		},
		ctx: context.TODO(),
	}

	if sa.config.termCode == "" {
		sa.config.termCode = config.Scrape.TermCode
	}
	if sa.config.subjectCode == "" {
		sa.config.subjectCode = config.Scrape.SubjectCode
	}

	sa.init()
}

func (sa *scrapeApp) init() {
	conn := banweb.NewConnection(sa.config.service.Source)
	if err := conn.Authenticate(sa.ctx); err != nil {
		log.WithError(err).Fatalln("failed to authenticate")
	}

	scraper := banweb.NewScraper(conn, sa.locations())

	var helper *redis.Helper
	if sa.config.queue {
		helper = redis.NewHelper(sa.config.service, sa.app.Name)
	}

	terms, err := scraper.Terms(sa.ctx)
	if err != nil {
		log.WithError(err).Fatalln("failed to list terms")
	}

	for _, term := range terms {
		if sa.config.termCode != "" && term.Id != sa.config.termCode {
			continue
		}

		subjects, err := scraper.Subjects(sa.ctx, term)
		if err != nil {
			log.WithError(err).WithField("term", term.Id).Fatalln("failed to list subjects")
		}

		for _, subject := range subjects {
			if sa.config.subjectCode != "" && subject.Code != sa.config.subjectCode {
				continue
			}

			sa.scrapeUnit(scraper, helper, term, subject)
		}
	}
}

func (sa *scrapeApp) scrapeUnit(scraper *banweb.Scraper, helper *redis.Helper, term model.Term, subject model.Subject) {
	defer model.TimeTrack(time.Now(), "scrape "+term.Id+"."+subject.Code)

	sections, err := scraper.Sections(sa.ctx, term, subject)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"term":    term.Id,
			"subject": subject.Code,
		}).Errorln("failed to scrape sections")
		return
	}

	snap := model.Snapshot{
		Term:      term,
		Subject:   subject,
		Sections:  sections,
		ScrapedAt: time.Now(),
	}

	log.WithFields(log.Fields{
		"term":     term.Id,
		"subject":  subject.Code,
		"sections": len(sections),
	}).Infoln("scraped")

	reader, err := model.MarshalSnapshot(sa.config.outputFormat, snap)
	if err != nil {
		log.WithError(err).Fatalln()
	}

	if helper != nil {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(reader); err != nil {
			log.WithError(err).Fatalln()
		}

		if err := helper.PushSnapshot(snap, buf.Bytes()); err != nil {
			log.WithError(err).Fatalln("failed to queue snapshot")
		}
		return
	}

	if _, err := io.Copy(os.Stdout, reader); err != nil {
		log.WithError(err).Fatalln()
	}
}

func (sa *scrapeApp) locations() *banweb.LocationTable {
	if sa.config.service.Scrape.BuildingFile == "" {
		return nil
	}

	locations, err := banweb.LoadLocations(sa.config.service.Scrape.BuildingFile)
	if err != nil {
		log.WithError(err).Fatalln("failed to load building tables")
	}

	return locations
}
