package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/models"
)

var importContractsCmd = &cobra.Command{
	Use:   "import-contracts <file>",
	Short: "Load contracts from a JSON or YAML file into the records backend",
	Long: `Seeds the contracts table read by the analisar_contrato tool. The file holds a
list of contracts with id, user_id, name, client_name, type, status, risk_level,
score and content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, flushLog, err := loadConfig(cmd.Context())
		defer flushLog()
		if err != nil {
			return err
		}
		contracts, err := readContracts(args[0])
		if err != nil {
			return err
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if st.saver == nil {
			return errors.New("no records backend configured")
		}

		logger := log.FromCtx(ctx)
		for _, c := range contracts {
			if err := st.saver.SaveContract(ctx, c); err != nil {
				return fmt.Errorf("save contract %s: %w", c.ID, err)
			}
			logger.Debug().Str("contract_id", c.ID).Str("user_id", c.UserID).Msg("contract saved")
		}
		logger.Info().Int("count", len(contracts)).Msg("contracts imported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importContractsCmd)
}

func readContracts(path string) ([]models.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contracts: %w", err)
	}
	var contracts []models.Contract
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var rows []contractYAML
		if err := yaml.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode contracts: %w", err)
		}
		for _, r := range rows {
			contracts = append(contracts, models.Contract(r))
		}
	default:
		if err := json.Unmarshal(data, &contracts); err != nil {
			return nil, fmt.Errorf("decode contracts: %w", err)
		}
	}
	return contracts, nil
}

// contractYAML mirrors models.Contract with yaml keys.
type contractYAML struct {
	ID         string   `yaml:"id"`
	UserID     string   `yaml:"user_id"`
	Name       string   `yaml:"name"`
	ClientName string   `yaml:"client_name"`
	Type       string   `yaml:"type"`
	Status     string   `yaml:"status"`
	RiskLevel  string   `yaml:"risk_level"`
	Score      *float64 `yaml:"score"`
	Content    string   `yaml:"content"`
}
