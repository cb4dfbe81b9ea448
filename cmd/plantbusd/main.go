// plantbusd runs the bottling-line simulation and exposes its registers over
// Modbus TCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-plantbus/config"
	"github.com/arloliu/go-plantbus/internal/task"
	"github.com/arloliu/go-plantbus/logger"
	"github.com/arloliu/go-plantbus/mbtcp"
	"github.com/arloliu/go-plantbus/plant"
	"github.com/arloliu/go-plantbus/register"
	"github.com/arloliu/go-plantbus/sim"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "plantbusd",
	Short: "Modbus TCP register bridge for the simulated bottling line",
	Long: `plantbusd simulates a bottling line (conveyor, water valve, presence
sensors) and serves its state over Modbus TCP. External clients read and
write the provisioned coils and registers; the synchronization bridge keeps
them consistent with the live equipment state once per tick.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the line configuration file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	if debug {
		logger.SetLevel(logger.DebugLevel)
	}
	log := logger.GetLogger()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := register.NewStore()

	bridge := plant.NewBridge(store, log)
	conveyor := plant.NewEquipment("conveyor", cfg.Conveyor.Coil, cfg.Conveyor.Holding, cfg.Conveyor.Active, cfg.Conveyor.Rate)
	valve := plant.NewEquipment("valve", cfg.Valve.Coil, cfg.Valve.Holding, cfg.Valve.Active, cfg.Valve.Rate)
	if err := bridge.BindEquipment(conveyor); err != nil {
		return err
	}
	if err := bridge.BindEquipment(valve); err != nil {
		return err
	}

	zones := make([]sim.Zone, 0, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		kind, err := plant.ParseObjectKind(s.Detects)
		if err != nil {
			return err
		}
		if err := bridge.BindSensor(s.Tag, s.Address, kind); err != nil {
			return err
		}
		zones = append(zones, sim.Zone{Tag: s.Tag, Kind: kind, Start: s.ZoneStart, End: s.ZoneEnd})
	}

	srvCfg, err := mbtcp.NewServerConfig(cfg.Listen.Host, cfg.Listen.Port, mbtcp.WithLogger(log))
	if err != nil {
		return err
	}
	server, err := mbtcp.NewServer(ctx, srvCfg, store)
	if err != nil {
		return err
	}
	// a bind failure is fatal: report it and exit, no retry
	if err := server.Start(); err != nil {
		return fmt.Errorf("start modbus server: %w", err)
	}

	line := sim.NewLine(bridge, conveyor, valve, zones, log)

	tickMgr := task.NewManager(ctx, log)
	if _, err := tickMgr.StartInterval("tick", func() bool {
		line.Tick(cfg.TickInterval.Std())
		return true
	}, cfg.TickInterval.Std(), false); err != nil {
		return err
	}

	log.Info("line running", "tick_interval", cfg.TickInterval.Std())

	<-ctx.Done()

	log.Info("shutting down")
	tickMgr.Stop()
	tickMgr.Wait()

	return server.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("plantbusd failed", "error", err)
	}
}
