package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddieowens/axon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/service"
)

const (
	exitPromoted           = 0
	exitRolledBack         = 1
	exitManualIntervention = 2
)

func main() {
	injector := pkg.InjectorFactory()
	conf := injector.GetStructPtr(config.ConfigKey).(*config.Config)

	configureLogger(conf)

	rootCmd := &cobra.Command{
		Use:           "ramp",
		Short:         "Progressive rollouts for Kubernetes workloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(injector))
	rootCmd.AddCommand(newRunCmd(injector, conf))
	rootCmd.AddCommand(newAbortCmd(injector))
	rootCmd.AddCommand(newTrafficCmd(injector, conf))
	rootCmd.AddCommand(newSnapshotsCmd(injector, conf))
	rootCmd.AddCommand(newRevisionsCmd(injector, conf))

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(exitRolledBack)
	}
}

func configureLogger(conf *config.Config) {
	format := &log.TextFormatter{
		TimestampFormat: conf.Log.TimeFormat,
	}

	log.SetFormatter(format)

	logLvl, err := log.ParseLevel(conf.Log.Level)
	if err != nil {
		logLvl = log.InfoLevel
	}

	log.SetLevel(logLvl)
}

func newServeCmd(injector axon.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rollout API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return injector.GetStructPtr(pkg.AppKey).(pkg.App).Start()
		},
	}
}

func newRunCmd(injector axon.Injector, conf *config.Config) *cobra.Command {
	spec := &model.RolloutSpec{}
	var durationSeconds, intervalSeconds int
	var strategy string

	cmd := &cobra.Command{
		Use:   "run [workload]",
		Short: "Roll a workload out to a new image and wait for the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.WorkloadName = args[0]
			spec.Strategy = model.Strategy(strategy)
			spec.ObserveDuration = time.Duration(durationSeconds) * time.Second
			spec.Interval = time.Duration(intervalSeconds) * time.Second

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc := injector.GetStructPtr(service.RolloutServiceKey).(service.RolloutService)
			state, err := svc.Run(ctx, spec)
			if err != nil {
				return err
			}

			printJSON(state)
			os.Exit(exitCode(state))
			return nil
		},
	}

	cmd.Flags().StringVarP(&spec.Opt.Namespace, "namespace", "n", "default", "Namespace of the workload")
	cmd.Flags().StringVarP(&spec.CandidateImage, "image", "i", "", "Candidate image to roll out")
	cmd.Flags().StringVar(&spec.ContainerName, "container", "", "Container to update; defaults to the first one")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(model.StrategyCanary), "Rollout strategy: canary or blue-green")
	cmd.Flags().Int32VarP(&spec.CanaryWeight, "weight", "w", conf.Rollout.DefaultWeight, "Percentage of traffic sent to the candidate")
	cmd.Flags().IntVarP(&durationSeconds, "duration", "d", int(conf.Rollout.DefaultDuration.Seconds()), "Observation window in seconds")
	cmd.Flags().IntVar(&intervalSeconds, "interval", int(conf.Rollout.DefaultInterval.Seconds()), "Seconds between health probes")
	cmd.Flags().Float64VarP(&spec.Threshold, "threshold", "t", conf.Rollout.DefaultThreshold, "Success rate percentage required to promote")
	cmd.Flags().IntVar(&spec.MinSamples, "min-samples", conf.Rollout.MinSamples, "Samples required before the verdict counts")
	cmd.Flags().StringVar(&spec.ProbeURL, "probe-url", "", "Probe this URL instead of the candidate service")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func exitCode(state *model.RolloutState) int {
	if state.ManualIntervention {
		return exitManualIntervention
	}
	if state.Outcome == model.OutcomePromoted {
		return exitPromoted
	}
	return exitRolledBack
}

func newAbortCmd(injector axon.Injector) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "abort [workload]",
		Short: "Abort the active rollout of a workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := injector.GetStructPtr(service.RolloutServiceKey).(service.RolloutService)
			return svc.Abort(&model.AbortRolloutSpec{
				Opt:          kconfig.Opt{Namespace: namespace},
				WorkloadName: args[0],
			})
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the workload")

	return cmd
}

func newTrafficCmd(injector axon.Injector, conf *config.Config) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Inspect or reset a workload's traffic split",
	}

	getCmd := &cobra.Command{
		Use:   "get [workload]",
		Short: "Show the current traffic split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(conf)
			defer cancel()

			svc := injector.GetStructPtr(service.TrafficServiceKey).(service.TrafficService)
			split, err := svc.CurrentSplit(ctx, args[0], kconfig.Opt{Namespace: namespace})
			if err != nil {
				return err
			}

			printJSON(split)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset [workload]",
		Short: "Send all traffic back to the stable workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(conf)
			defer cancel()

			svc := injector.GetStructPtr(service.TrafficServiceKey).(service.TrafficService)
			return svc.FinalizeSplit(ctx, &model.FinalizeSplitSpec{
				Opt:          kconfig.Opt{Namespace: namespace},
				WorkloadName: args[0],
				Promote:      false,
			})
		},
	}

	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the workload")
	cmd.AddCommand(getCmd)
	cmd.AddCommand(resetCmd)

	return cmd
}

func newSnapshotsCmd(injector axon.Injector, conf *config.Config) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect or prune a workload's snapshots",
	}

	listCmd := &cobra.Command{
		Use:   "list [workload]",
		Short: "List snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(conf)
			defer cancel()

			svc := injector.GetStructPtr(service.BackupServiceKey).(service.BackupService)
			snaps, err := svc.List(ctx, args[0], kconfig.Opt{Namespace: namespace})
			if err != nil {
				return err
			}

			printJSON(snaps)
			return nil
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune [workload]",
		Short: "Delete all but the newest snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(conf)
			defer cancel()

			svc := injector.GetStructPtr(service.BackupServiceKey).(service.BackupService)
			pruned, err := svc.Prune(ctx, args[0], kconfig.Opt{Namespace: namespace})
			if err != nil {
				return err
			}

			log.WithField("workload", args[0]).
				WithField("pruned", pruned).
				Info("Pruned snapshots")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the workload")
	cmd.AddCommand(listCmd)
	cmd.AddCommand(pruneCmd)

	return cmd
}

func newRevisionsCmd(injector axon.Injector, conf *config.Config) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "revisions [workload]",
		Short: "List a workload's deployment revisions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(conf)
			defer cancel()

			svc := injector.GetStructPtr(service.DeployBackendServiceKey).(service.DeployBackendService)
			revs, err := svc.RevisionHistory(ctx, args[0], kconfig.Opt{Namespace: namespace})
			if err != nil {
				return err
			}

			printJSON(revs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the workload")

	return cmd
}

func callContext(conf *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), conf.Rollout.CallTimeout)
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.WithError(err).Error("Failed to render output")
		return
	}
	fmt.Println(string(b))
}
