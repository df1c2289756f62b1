package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/shaiso/Observa/internal/mq"
	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду статуса планировщика.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := clientFn().SchedulerStatus()
			if err != nil {
				return err
			}

			configID := "-"
			if s.ConfigID != nil {
				configID = strconv.FormatInt(*s.ConfigID, 10)
			}

			outputFn().Print(
				[]string{"ACTIVE", "STATE", "NEXT_FIRE", "INTERVAL", "CONFIG_ID"},
				[][]string{{
					Status(strconv.FormatBool(s.Active)),
					Status(s.State),
					formatTime(s.NextScheduledTime),
					strconv.Itoa(s.IntervalMinutes) + "m",
					configID,
				}},
				s,
			)
			return nil
		},
	}
}

// NewDevicesCmd создаёт команду проверки устройств.
func NewDevicesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Show device probe results",
		RunE: func(cmd *cobra.Command, args []string) error {
			probes, err := clientFn().Devices(refresh)
			if err != nil {
				return err
			}

			rows := make([][]string, len(probes))
			for i, p := range probes {
				state := "ok"
				if !p.OK {
					state = "down"
				}
				rows[i] = []string{p.Device, Status(state), p.Error, formatTime(&p.CheckedAt)}
			}

			outputFn().Print([]string{"DEVICE", "STATE", "ERROR", "CHECKED"}, rows, probes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Probe devices now instead of showing cached results")

	return cmd
}

// runTriggerPublisher — публикация запроса run.trigger.
type runTriggerPublisher interface {
	PublishRunTrigger(ctx context.Context, payload mq.RunTriggerPayload) error
}

// dialPublisher подключается к брокеру. Подменяется в тестах.
var dialPublisher = func(url string) (runTriggerPublisher, io.Closer, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		return nil, nil, err
	}
	return mq.NewPublisher(conn, logger, nil), conn, nil
}

// NewTriggerCmd создаёт команду ручного запуска измерения.
//
// По умолчанию run выполняется синхронно через HTTP API. С --amqp-url
// запрос ставится в очередь runs.trigger и команда сразу завершается.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var requestedBy string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a measurement now using the stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if amqpURL != "" {
				pub, closer, err := dialPublisher(amqpURL)
				if err != nil {
					return fmt.Errorf("connect to broker: %w", err)
				}
				defer closer.Close()

				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()

				if err := pub.PublishRunTrigger(ctx, mq.RunTriggerPayload{RequestedBy: requestedBy}); err != nil {
					return err
				}
				out.Success("Run requested via " + string(mq.QueueRunsTrigger))
				return nil
			}

			resp, err := clientFn().Trigger()
			if err != nil {
				return err
			}

			m := resp.Measurement
			out.Success(resp.Message)
			out.Print(runHeaders, [][]string{runRow(m)}, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "Queue the run through RabbitMQ instead of calling the API")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "cli", "Requester recorded in the run.trigger message")

	return cmd
}
