package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tradeocr/internal/application/usecase/ingest"
	"tradeocr/internal/domain/model"
	"tradeocr/internal/infrastructure/config"
	"tradeocr/internal/infrastructure/logger"
	"tradeocr/internal/infrastructure/svc"
	"tradeocr/internal/interfaces/console"
)

type globalFlags struct {
	configPath string
	userID     int64
	date       string
	jsonOut    bool
	noColor    bool
	logLevel   string
}

// noConfigAnnotation 标记无需加载配置的命令
const noConfigAnnotation = "tradeocr/no-config"

type app struct {
	flags globalFlags
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tradeocr",
		Short: "Import brokerage trade screenshots into the trade ledger",
		Long: `tradeocr recognizes trade confirmation screenshots, parses the buy/sell
transactions and merges them into the user's trade ledger and positions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[noConfigAnnotation] == "true" {
				logger.Setup(a.flags.logLevel)
				return nil
			}
			cfg, err := config.Load(a.flags.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", a.flags.configPath, err)
			}
			level := cfg.App.LogLevel
			if a.flags.logLevel != "" {
				level = a.flags.logLevel
			}
			logger.Setup(level)
			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "configs/config.toml", "path to config.toml")
	pf.Int64Var(&a.flags.userID, "user", 0, "user id (defaults to app.user_id)")
	pf.StringVar(&a.flags.date, "date", "", "trade date YYYY-MM-DD (today if not provided)")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print results as JSON")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "override app.log_level")

	rootCmd.AddCommand(
		a.newProcessCmd(),
		a.newBatchCmd(),
		a.newPreviewCmd(),
		a.newExtractCmd(),
		a.newUploadCmd(),
		a.newPositionsCmd(),
		a.newTradesCmd(),
		a.newStockCmd(),
		newFormatsCmd(),
	)
	return rootCmd
}

func (a *app) newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <image>",
		Short: "Recognize one screenshot and save its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, true, func(sc *svc.ServiceContext, userID int64, date time.Time) error {
				res := sc.Ingest().ProcessOne(cmd.Context(), args[0], userID, date)
				if err := sc.Sink.WriteResult(res); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("process %s: %s", args[0], res.Error)
				}
				return nil
			})
		},
	}
}

func (a *app) newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <dir>",
		Short: "Process every supported image in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, true, func(sc *svc.ServiceContext, userID int64, date time.Time) error {
				res, err := sc.Ingest().ProcessFolder(cmd.Context(), args[0], userID, date)
				if res != nil {
					if werr := sc.Sink.WriteResult(res); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
}

func (a *app) newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <image>",
		Short: "Show the trades a screenshot would produce without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, true, func(sc *svc.ServiceContext, userID int64, date time.Time) error {
				res, err := sc.Ingest().Preview(cmd.Context(), args[0], userID, date)
				if err != nil {
					return err
				}
				return sc.Sink.WriteResult(res)
			})
		},
	}
}

func (a *app) newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <image>",
		Short: "Print recognized text and parsed transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, true, func(sc *svc.ServiceContext, _ int64, _ time.Time) error {
				res, err := sc.Ingest().Extract(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return sc.Sink.WriteResult(res)
			})
		},
	}
}

func (a *app) newUploadCmd() *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Copy a screenshot into the upload directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, process, func(sc *svc.ServiceContext, userID int64, date time.Time) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				up, err := sc.Ingest().StoreUpload(f, args[0])
				_ = f.Close()
				if err != nil {
					return err
				}
				if !process {
					return sc.Sink.WriteResult(up)
				}
				res := sc.Ingest().ProcessOne(cmd.Context(), up.FilePath, userID, date)
				res.Filename = up.Filename
				return sc.Sink.WriteResult(res)
			})
		},
	}
	cmd.Flags().BoolVar(&process, "process", false, "process the stored file right away")
	return cmd
}

func (a *app) newPositionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "List current positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, false, func(sc *svc.ServiceContext, userID int64, _ time.Time) error {
				positions, err := sc.Positions().ListPositions(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return sc.Sink.WriteResult(positions)
			})
		},
	}
}

func (a *app) newTradesCmd() *cobra.Command {
	var tsCode string
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List saved trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, false, func(sc *svc.ServiceContext, userID int64, _ time.Time) error {
				trades, err := sc.Trades().ListTrades(cmd.Context(), userID, strings.ToUpper(tsCode))
				if err != nil {
					return err
				}
				return sc.Sink.WriteResult(trades)
			})
		},
	}
	cmd.Flags().StringVar(&tsCode, "code", "", "filter by ts_code, e.g. 300558.SZ")
	return cmd
}

func (a *app) newStockCmd() *cobra.Command {
	stockCmd := &cobra.Command{
		Use:   "stock",
		Short: "Stock reference data",
	}
	stockCmd.AddCommand(&cobra.Command{
		Use:   "add <ts_code> <symbol> <name>",
		Short: "Add or update a stock name mapping",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, false, func(sc *svc.ServiceContext, _ int64, _ time.Time) error {
				s := &model.Stock{TsCode: strings.ToUpper(args[0]), Symbol: args[1], Name: args[2]}
				if err := sc.Stocks().UpsertStock(cmd.Context(), s); err != nil {
					return err
				}
				return sc.Sink.WriteText(fmt.Sprintf("%s %s %s", s.TsCode, s.Symbol, s.Name))
			})
		},
	})
	return stockCmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "formats",
		Short:       "List supported image formats",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return console.NewSink(cmd.OutOrStdout(), jsonOut, false).WriteResult(ingest.SupportedFormats())
		},
	}
}

// withContext 初始化依赖后执行命令，结束时释放资源
func (a *app) withContext(cmd *cobra.Command, withOCR bool, fn func(sc *svc.ServiceContext, userID int64, date time.Time) error) error {
	userID := a.flags.userID
	if userID <= 0 {
		userID = a.cfg.App.UserID
	}
	date, err := model.ParseTradeDate(a.flags.date, time.Now())
	if err != nil {
		return fmt.Errorf("invalid --date %q: %w", a.flags.date, err)
	}

	color := !a.flags.noColor && isatty.IsTerminal(os.Stdout.Fd())
	opts := svc.Options{Sink: console.NewSink(cmd.OutOrStdout(), a.flags.jsonOut, color)}
	if withOCR {
		opts.OCR = newOCREngine
	}

	sc, err := svc.New(cmd.Context(), a.cfg, opts)
	if err != nil {
		return err
	}
	defer sc.Close()
	return fn(sc, userID, date)
}
