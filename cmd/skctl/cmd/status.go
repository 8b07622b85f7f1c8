package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"skctl/internal/task"
)

var waitFlag bool

var statusCmd = &cobra.Command{
	Use:   "status [pipeline_id]",
	Short: "Get the status of a pipeline",
	Long: `Ask the tasking service for the current state of a pipeline (NEW, PROCESSING, RESOLVED or FAILED).

With --wait, keep polling at the configured interval until the pipeline finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, id := cmd.Context(), args[0]
		status, err := current.client.Status(ctx, id)
		if err != nil {
			return err
		}

		if waitFlag {
			job := task.Attach[struct{}](current.client, pipelineRef{}, id, status)
			if err := job.Wait(ctx, current.waitOptions()...); err != nil {
				return jobError(job, err)
			}
			status = job.Status
		}

		printStatus(cmd, id, status)
		return nil
	},
}

// pipelineRef is a pipeline known only by its id. It can be polled but
// neither submitted nor retrieved.
type pipelineRef struct{}

var errPipelineRef = errors.New("pipeline reference has no request or result")

func (pipelineRef) Kind() string        { return "tasking" }
func (pipelineRef) InitiateURL() string { return "" }
func (pipelineRef) RetrieveURL() string { return "" }

func (pipelineRef) BuildRequest() (any, error) {
	return nil, errPipelineRef
}

func (pipelineRef) ParseResult(context.Context, []byte) (struct{}, error) {
	return struct{}{}, fmt.Errorf("parse: %w", errPipelineRef)
}

func printStatus(cmd *cobra.Command, id string, status task.Status) {
	cmd.Printf("%s %sPipeline Details%s\n", statusIcon(status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, id)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(status))
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status task.Status) string {
	switch status {
	case task.StatusResolved:
		return colorGreen + "✓" + colorReset
	case task.StatusFailed:
		return colorRed + "✗" + colorReset
	case task.StatusProcessing:
		return colorYellow + "⏳" + colorReset
	case task.StatusNew:
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status task.Status) string {
	icon := statusIcon(status)
	switch status {
	case task.StatusResolved:
		return icon + " " + colorGreen + status.String() + colorReset
	case task.StatusFailed:
		return icon + " " + colorRed + status.String() + colorReset
	case task.StatusProcessing:
		return icon + " " + colorYellow + status.String() + colorReset
	case task.StatusNew:
		return icon + " " + colorCyan + status.String() + colorReset
	default:
		return status.String()
	}
}

func init() {
	statusCmd.Flags().BoolVar(&waitFlag, "wait", false, "poll until the pipeline is RESOLVED or FAILED")
	rootCmd.AddCommand(statusCmd)
}
