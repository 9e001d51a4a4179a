package mode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/khaledhikmat/framex-go/model"
)

type probeReport struct {
	Input        string               `json:"input"`
	Source       model.SourceInfo     `json:"source"`
	Container    *model.ContainerInfo `json:"container,omitempty"`
	ContainerErr string               `json:"containerError,omitempty"`
}

// Probe prints what the decoder and the container report about args[0].
func Probe(_ context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 1 {
		return &model.ConfigurationError{Field: "input", Reason: "probe takes exactly one video path"}
	}
	input := args[0]

	src, err := svcs.Opener(input, svcs.CfgSvc.GetExtractorParameters().Backend)
	if err != nil {
		return err
	}
	report := probeReport{Input: input, Source: src.Info()}
	src.Close()

	if svcs.Prober != nil {
		info, err := svcs.Prober(input)
		if err != nil {
			report.ContainerErr = err.Error()
		} else {
			report.Container = &info
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(svcs.Out, string(data))
	return err
}
