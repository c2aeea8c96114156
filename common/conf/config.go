package conf

import (
	"fmt"
	"net"
	_ "net/http/pprof"
	"os"

	"github.com/BurntSushi/toml"
	log "github.com/Sirupsen/logrus"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName  string
	Source   Source   `toml:"source"`
	Scrape   Scrape   `toml:"scrape"`
	Postgres Postgres `toml:"postgres"`
	Redis    Redis    `toml:"redis"`
}

// Source holds everything needed to reach the self-service portal.
type Source struct {
	BaseUrl  string `toml:"base_url" envconfig:"SOURCE_BASE_URL"`
	Username string `toml:"username" envconfig:"SOURCE_USERNAME"`
	Password string `toml:"password" envconfig:"SOURCE_PASSWORD"`
}

// Scrape bounds a run to all terms, one term, or one term and subject.
type Scrape struct {
	TermCode    string `toml:"term" envconfig:"SCRAPE_TERM"`
	SubjectCode string `toml:"subject" envconfig:"SCRAPE_SUBJECT"`
	// BuildingFile points at the building/campus lookup tables. When empty
	// the compiled-in tables are used.
	BuildingFile string `toml:"building_file" envconfig:"SCRAPE_BUILDING_FILE"`
}

type Postgres struct {
	User     string `toml:"user" envconfig:"POSTGRES_USER"`
	Host     string `toml:"host"  envconfig:"POSTGRES_HOST"`
	Port     string `toml:"port" envconfig:"POSTGRES_PORT"`
	Password string `toml:"password" envconfig:"POSTGRES_PASSWORD"`
	Name     string `toml:"name" envconfig:"POSTGRES_DB"`
	ConnMax  int    `toml:"connection_max" envconfig:"POSTGRES_MAX_CONNECTIONS"`
}

type Redis struct {
	Host     string `toml:"host" envconfig:"REDIS_SERVICE_HOST"`
	Port     string `toml:"port" envconfig:"REDIS_SERVICE_PORT"`
	Password string `toml:"password" envconfig:"REDIS_PASSWORD"`
	Db       int    `toml:"db" envconfig:"REDIS_DB"`
}

func OpenConfig(file *os.File) Config {
	return OpenConfigWithName(file, "")
}

func OpenConfigWithName(file *os.File, name string) Config {
	c := Config{}
	if _, err := toml.DecodeReader(file, &c); err != nil {
		log.Fatalln("error while decoding config file checking environment:", err)
	}

	c.fromEnvironment()
	c.AppName = name

	return c
}

func (c *Config) fromEnvironment() {
	if err := envconfig.Process("", &c.Source); err != nil {
		log.Fatal(err.Error())
	}

	if err := envconfig.Process("", &c.Scrape); err != nil {
		log.Fatal(err.Error())
	}

	if err := envconfig.Process("", &c.Postgres); err != nil {
		log.Fatal(err.Error())
	}

	if err := envconfig.Process("", &c.Redis); err != nil {
		log.Fatal(err.Error())
	}
}

func (c Config) DebugServer(appName string) net.Listener {
	listener, err := net.Listen("tcp", ":13100")
	if err != nil {
		listener, _ = net.Listen("tcp", ":0")
		log.Println("pprof on port...", listener.Addr().(*net.TCPAddr).Port)
	}

	return listener
}

func (c Config) DatabaseConfig(appName string) string {
	return fmt.Sprintf("user=%s dbname=%s password=%s host=%s port=%s fallback_application_name=%s sslmode=disable",
		c.Postgres.User, c.Postgres.Name, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port, appName)
}

func (c Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}
