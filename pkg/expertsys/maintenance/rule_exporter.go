package maintenance

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
)

// RuleWriter persists exported rules to a destination (file, DB, etc.).
type RuleWriter interface {
	WriteRules(ctx context.Context, content string) error
}

// RuleExporter renders a knowledge base as a rules file that config.LoadRuleSet
// can read back.
type RuleExporter struct {
	Writer RuleWriter
	Name   string
}

// Export marshals base in rule order and hands the YAML to the writer.
func (e *RuleExporter) Export(ctx context.Context, base *kb.KnowledgeBase) error {
	if e.Writer == nil {
		return fmt.Errorf("rule exporter: nil writer")
	}
	out, err := yaml.Marshal(config.FromKnowledgeBase(e.Name, base))
	if err != nil {
		return fmt.Errorf("rule exporter: %w", err)
	}
	return e.Writer.WriteRules(ctx, string(out))
}

// FileWriter writes rules to a file path, replacing its contents.
type FileWriter struct {
	Path string
}

// WriteRules implements RuleWriter.
func (w FileWriter) WriteRules(ctx context.Context, content string) error {
	return os.WriteFile(w.Path, []byte(content), 0644)
}
