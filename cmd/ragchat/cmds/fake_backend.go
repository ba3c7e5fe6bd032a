package cmds

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/api/fakebackend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewFakeBackendCommand() *cobra.Command {
	var addr string
	var chunkSize int
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "fake-backend",
		Short: "Serve a scripted backend that echoes questions, for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b := fakebackend.New()
			b.Script = func(req *api.ConversationRequest) fakebackend.Script {
				s := fakebackend.EchoScript(req)
				s.ChunkSize = chunkSize
				s.Delay = delay
				return s
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           b.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Info().Str("addr", addr).Msg("serving fake backend")
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:5000", "Address to listen on")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 17, "Bytes per streamed chunk")
	cmd.Flags().DurationVar(&delay, "delay", 20*time.Millisecond, "Delay between chunks")

	return cmd
}
