package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lucifer2f/sld-design-sub001/internal/exporter"
	"github.com/lucifer2f/sld-design-sub001/internal/importer"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

type importFlags struct {
	format      string
	output      string
	xlsx        string
	sheets      []string
	save        bool
	noEmbedding bool
	noAdvisor   bool
	strict      bool
}

func importCommand(configPath *string) *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import [schedule.xlsx]",
		Short: "导入一个工作簿并输出处理报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args[0], flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "报告格式: json, yaml")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "报告输出文件 (默认标准输出)")
	cmd.Flags().StringVar(&flags.xlsx, "xlsx", "", "同时导出报告工作簿到该路径")
	cmd.Flags().StringSliceVar(&flags.sheets, "sheet", nil, "只处理指定的 sheet (可重复)")
	cmd.Flags().BoolVar(&flags.save, "save", false, "写入运行历史数据库")
	cmd.Flags().BoolVar(&flags.noEmbedding, "no-embedding", false, "禁用语义相似度能力")
	cmd.Flags().BoolVar(&flags.noAdvisor, "no-advisor", false, "禁用模型建议能力")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "报告含 error 级问题时以非零状态退出")
	return cmd
}

func runImport(ctx context.Context, configPath, path string, flags importFlags, stdout io.Writer) error {
	switch flags.format {
	case "json", "yaml":
	default:
		return eris.Wrapf(model.ErrInvalidConfig, "unknown format %q", flags.format)
	}

	a, err := newApp(configPath, flags.save)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.coordinator(coordinatorOptions{noEmbedding: flags.noEmbedding, noAdvisor: flags.noAdvisor})
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *model.ProcessingReport
	for evt := range c.Import(ctx, importer.ImportOptions{FilePath: path, Sheets: flags.sheets, Save: flags.save}) {
		switch evt.Type {
		case importer.EventError:
			return eris.New(evt.Message)
		case importer.EventWarning:
			a.logger.Warn(evt.Message, zap.String("run_id", evt.RunID))
		case importer.EventDone:
			report, _ = evt.Data.(*model.ProcessingReport)
		default:
			a.logger.Info(evt.Message, zap.String("run_id", evt.RunID), zap.String("event", evt.Type))
		}
	}
	if report == nil {
		return eris.New("import finished without a report")
	}

	if flags.xlsx != "" {
		if err := exporter.NewExporter(c.Registry()).ExportFile(report, flags.xlsx); err != nil {
			return err
		}
		a.logger.Info("report workbook written", zap.String("path", flags.xlsx))
	}

	out := stdout
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return eris.Wrapf(err, "failed to create %s", flags.output)
		}
		defer f.Close()
		out = f
	}
	if err := writeReport(out, report, flags.format); err != nil {
		return err
	}

	if flags.strict {
		if sum := report.Summarize(); sum.Errors > 0 {
			return eris.Errorf("report has %d error issues", sum.Errors)
		}
	}
	return nil
}

// writeReport 以 JSON 或 YAML 输出报告；YAML 与 JSON 字段名一致
func writeReport(w io.Writer, report *model.ProcessingReport, format string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode report")
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return eris.Wrap(err, "failed to write report")
	}
	return writeYAML(w, data)
}

// writeYAML 将 JSON 文档转写为 YAML
func writeYAML(w io.Writer, jsonDoc []byte) error {
	var doc any
	if err := json.Unmarshal(jsonDoc, &doc); err != nil {
		return eris.Wrap(err, "failed to decode json document")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "failed to encode yaml")
	}
	return eris.Wrap(enc.Close(), "failed to flush yaml")
}
