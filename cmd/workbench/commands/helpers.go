// Package commands implements the workbench CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/expel-io/workbench-go/pkg/exclient"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// Output formats.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"

	NotAvailable = "N/A"

	defaultJSONIndent = "  "
)

// Common static errors used throughout the commands package.
var (
	ErrAPIKeyRequired       = errors.New("API key is required (use --api-key, WORKBENCH_API_KEY, or workbench login)")
	ErrUsernameRequired     = errors.New("username is required")
	ErrInvestigationIDEmpty = errors.New("investigation id is required")
)

// createClient builds an authenticated client from viper configuration.
func createClient(ctx context.Context) (workbench.Client, error) {
	config := &workbench.Config{
		APIEndpoint: viper.GetString("api"),
		APIKey:      viper.GetString("api_key"),
		Debug:       viper.GetBool("verbose"),
	}

	if config.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	return exclient.New(ctx, config)
}

// instanceDocument is the generic output shape for json/yaml rendering.
type instanceDocument struct {
	Type       string                 `json:"type"       yaml:"type"`
	ID         string                 `json:"id"         yaml:"id"`
	Attributes map[string]interface{} `json:"attributes" yaml:"attributes"`
}

func toDocuments(instances []*workbench.Instance) []instanceDocument {
	docs := make([]instanceDocument, 0, len(instances))
	for _, inst := range instances {
		docs = append(docs, instanceDocument{
			Type:       inst.Type(),
			ID:         inst.ID(),
			Attributes: inst.Attributes(),
		})
	}

	return docs
}

// renderInstances writes instances in the configured output format. The
// table form is produced by render, which receives the instances after the
// json/yaml short-circuit.
func renderInstances(instances []*workbench.Instance, render func([]*workbench.Instance) error) error {
	switch viper.GetString("output") {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", defaultJSONIndent)

		return encoder.Encode(toDocuments(instances))
	case OutputFormatYAML:
		return yaml.NewEncoder(os.Stdout).Encode(toDocuments(instances))
	default:
		return render(instances)
	}
}

// attrString renders one attribute for table output.
func attrString(inst *workbench.Instance, name string) string {
	value, err := inst.Attr(name)
	if err != nil || value == nil {
		return NotAvailable
	}

	switch typed := value.(type) {
	case string:
		if typed == "" {
			return NotAvailable
		}

		return typed
	case bool:
		if typed {
			return "yes"
		}

		return "no"
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// attrTimestamp renders a timestamp attribute as a date for table output.
func attrTimestamp(inst *workbench.Instance, name string) string {
	raw := attrString(inst, name)
	if raw == NotAvailable {
		return raw
	}

	if ts, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return ts.Format("2006-01-02")
	}

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.Format("2006-01-02")
	}

	return raw
}
