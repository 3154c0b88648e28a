package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramToken string

	DBPath string

	OrganizerTGIDs map[int64]bool

	HTTPAddr      string
	BasePublicURL string

	ExportTokenSecret string

	AssetProvider  string
	MapImagePath   string
	EventImagePath string

	LogLevel string
}

func FromEnv() (Config, error) {
	var c Config
	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	c.DBPath = strings.TrimSpace(os.Getenv("DB_PATH"))
	if c.DBPath == "" {
		c.DBPath = "bot.db"
	}

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")

	c.ExportTokenSecret = strings.TrimSpace(os.Getenv("EXPORT_TOKEN_SECRET"))
	if c.ExportTokenSecret == "" {
		c.ExportTokenSecret = "change-me"
	}

	c.AssetProvider = strings.TrimSpace(os.Getenv("ASSET_PROVIDER"))
	if c.AssetProvider == "" {
		c.AssetProvider = "fs"
	}
	c.MapImagePath = strings.TrimSpace(os.Getenv("MAP_IMAGE_PATH"))
	if c.MapImagePath == "" {
		c.MapImagePath = "MAP.jpeg"
	}
	c.EventImagePath = strings.TrimSpace(os.Getenv("EVENT_IMAGE_PATH"))
	if c.EventImagePath == "" {
		c.EventImagePath = "EVENT1.jpeg"
	}

	c.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.TelegramToken == "" {
		return c, fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}

	c.OrganizerTGIDs = parseOrganizerIDs(os.Getenv("ORGANIZER_TG_IDS"))

	return c, nil
}

func parseOrganizerIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
