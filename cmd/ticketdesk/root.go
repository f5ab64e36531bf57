package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/observability"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

var version = "dev"

// rootOptions carries what every subcommand gets from the root: loaded
// config and the logger built from it.
type rootOptions struct {
	backend string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ticketdesk",
		Short: "Support ticket desk client",
		Long: `ticketdesk drives the ticket desk state layer from the command line.

Tickets live in a PostgREST project (TICKETDESK_REST_URL), a PostgreSQL
database (POSTGRES_DSN) or, with neither, an in-process store. Results are
printed as JSON on stdout; logs go to stderr.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.backend != "" {
				cfg.Backend.Kind = strings.ToLower(opts.backend)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.cfg = cfg
			opts.logger = logger.With(zap.String("backend", cfg.Backend.Kind))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Override TICKETDESK_BACKEND (rest, postgres, memory)")

	root.AddCommand(
		newListCmd(opts),
		newCreateCmd(opts),
		newStatusCmd(opts),
		newAssignCmd(opts),
		newRespondCmd(opts),
		newDeleteCmd(opts),
		newTechniciansCmd(opts),
		newSummaryCmd(opts),
		newFilterCmd(opts),
		newLoginCmd(opts),
		newSignUpCmd(opts),
		newLogoutCmd(opts),
		newWhoAmICmd(opts),
		newMigrateCmd(opts),
		newDevServerCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type errorOutput struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Cause   string            `json:"cause,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w io.Writer, err error) {
	derr := apperrors.ToDomainError(err)
	out := errorOutput{Code: derr.Code, Message: derr.Message}
	if derr.Err != nil && derr.Err.Error() != derr.Message {
		out.Cause = derr.Err.Error()
	}
	if len(derr.Fields) > 0 {
		out.Fields = derr.FieldMap()
	}
	_ = printJSON(w, out)
}
