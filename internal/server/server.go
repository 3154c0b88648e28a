package server

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"festival-bot/internal/config"
	"festival-bot/internal/tgbot"
	"festival-bot/internal/util"
)

// New builds the HTTP side of the bot: the organizer-only CSV export of the
// contest ledger, reachable via an HMAC-token link handed out in-chat.
func New(cfg config.Config, log *logrus.Logger, bot *tgbot.App) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/export/contest.csv", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "token required", http.StatusBadRequest)
			return
		}
		expected := util.HMACSHA256Hex(cfg.ExportTokenSecret, "export:contest")
		if token != expected {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		csv, err := bot.BuildContestCSV()
		if err != nil {
			log.WithError(err).Error("build contest csv")
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="contest.csv"`)
		_, _ = w.Write([]byte(csv))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
