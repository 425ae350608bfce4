package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"neurogeo/pkg/api"
	"neurogeo/pkg/config"
	"neurogeo/pkg/core"
	"neurogeo/pkg/loader"
	"neurogeo/pkg/network"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "neurogeo-server",
	Short: "NeuroGeo learned spatial index server.",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the binary TCP server.",
	RunE:  runServe,
}

var loadCmd = &cobra.Command{
	Use:   "load <csv>",
	Short: "Bulk load a x,y[,zone] CSV file and train the index on it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML config (defaults to configs/neurogeo.yaml when present)")
	rootCmd.AddCommand(serveCmd, loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func openStore() (*config.Config, *core.SpatialStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := core.NewSpatialStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	log.Printf("[NeuroGeo] Store ready: %d points, model=%s", store.Len(), cfg.Index.Model)

	tcp := network.NewTCPServer(store)
	go func() {
		if err := tcp.Start(cfg.Server.TCPAddr); err != nil {
			log.Printf("[TCP] Server stopped: %v", err)
		}
	}()

	httpSrv := api.NewServer(store)
	go func() {
		if err := httpSrv.Start(cfg.Server.Addr); err != nil {
			log.Printf("[API] Server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("[NeuroGeo] Shutting down...")
	tcp.Close()
	store.Close()
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ds, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %s points in %v\n", humanize.Comma(int64(len(ds.Points))), time.Since(start))

	if len(ds.Zones) > 0 {
		zones := make([]int, 0, len(ds.Zones))
		for z := range ds.Zones {
			zones = append(zones, z)
		}
		sort.Ints(zones)
		fmt.Println("Zone distribution:")
		for i, z := range zones {
			if i == 10 {
				fmt.Printf("  ... and %d more zones\n", len(zones)-10)
				break
			}
			n := ds.Zones[z]
			fmt.Printf("  Zone %d: %d points (%.1f%%)\n", z, n, 100*float64(n)/float64(len(ds.Points)))
		}
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	start = time.Now()
	if err := store.BatchInsert(ds.Points); err != nil {
		return err
	}
	stats := store.Stats()
	fmt.Printf("Indexed in %v: items=%v buckets=%v axis=%v\n",
		time.Since(start), stats["items"], stats["buckets"], stats["axis"])
	return nil
}
