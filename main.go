package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/hlandau/easyconfig.v1"
	"gopkg.in/hlandau/service.v2"

	"github.com/picoircd/picoircd/server"
)

func main() {
	cfg := server.Config{}
	config := easyconfig.Configurator{
		ProgramName: "picoircd",
	}
	config.ParseFatal(&cfg)

	service.Main(&service.Info{
		Name:          "picoircd",
		Description:   "Pico IRCd",
		DefaultChroot: service.EmptyChrootPath,
		RunFunc: func(smgr service.Manager) error {
			s, err := server.New(cfg)
			if err != nil {
				return err
			}

			if cfg.MOTDFile != "" {
				motd, err := loadMOTD(cfg.MOTDFile)
				if err != nil {
					return err
				}
				s.SetMOTD(motd)
			}

			err = s.Start()
			if err != nil {
				return err
			}

			if cfg.MetricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.HandlerFor(
						s.MetricsRegistry(), promhttp.HandlerOpts{}))
					http.ListenAndServe(cfg.MetricsAddr, mux)
				}()
			}

			err = smgr.DropPrivileges()
			if err != nil {
				return err
			}

			smgr.SetStarted()
			smgr.SetStatus("picoircd: running ok")

			<-smgr.StopChan()
			s.Stop()

			return nil
		},
	})
}

func loadMOTD(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines, nil
}
