package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/scttfrdmn/genomicarray-go/pkg/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a cached array over HTTP",
	Long: `Open a cached genomic array read-only and serve it over HTTP.

Endpoints:
  GET /info                                 layout and chromosome shapes
  GET /values?region=chr:s-e[:strand]&condition=<name|index>
  GET /block?region=chr:s-e                 cells across strands and conditions

Example:
  genomicarray serve --tags cov --listen :8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		router := server.NewRouter[value](store, logrus.StandardLogger())

		logrus.WithField("addr", listenAddr).Info("serving")
		if err := router.Run(listenAddr); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	},
}

func init() {
	addStoreFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080",
		"Address to listen on")
}
