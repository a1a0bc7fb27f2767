package configs

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// InitLogger: JSON di production, text berwarna untuk lokal.
func InitLogger(appEnv string) {
	log.SetOutput(os.Stdout)

	if strings.EqualFold(appEnv, "production") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	level, err := log.ParseLevel(GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
