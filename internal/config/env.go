/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"bq-data-agent/internal/dataset"
)

// EnvFileVariable overrides the location of the .env file
const EnvFileVariable = "BQ_AGENT_ENV_FILE"

// envOverrides lists every variable the agent reads. Agent and scope
// settings keep the names used by existing deployments; server settings
// carry the BQ_AGENT_ prefix.
type envOverrides struct {
	Model          string   `envconfig:"MODEL"`
	ProjectID      string   `envconfig:"PROJECT_ID"`
	ProjectNumber  string   `envconfig:"PROJECT_NUMBER"`
	Location       string   `envconfig:"BQ_LOCATION"`
	Dataset        string   `envconfig:"DATASET_NAME"`
	Tables         *string  `envconfig:"TABLE_NAMES"`
	ProfilesTable  string   `envconfig:"DATA_PROFILES_TABLE_FULL_ID"`
	FewShotTable   string   `envconfig:"FEW_SHOT_EXAMPLES_TABLE_FULL_ID"`
	DisplayName    string   `envconfig:"DISPLAY_NAME"`
	Description    string   `envconfig:"AGENT_DESCRIPTION"`
	AuthID         string   `envconfig:"AUTH_ID"`
	DelegationHdr  string   `envconfig:"BQ_AGENT_DELEGATION_HEADER"`
	HTTPEnabled    envBool  `envconfig:"BQ_AGENT_HTTP_ENABLED"`
	HTTPAddress    string   `envconfig:"BQ_AGENT_HTTP_ADDRESS"`
	TLSEnabled     envBool  `envconfig:"BQ_AGENT_TLS_ENABLED"`
	TLSCertFile    string   `envconfig:"BQ_AGENT_TLS_CERT_FILE"`
	TLSKeyFile     string   `envconfig:"BQ_AGENT_TLS_KEY_FILE"`
	TLSChainFile   string   `envconfig:"BQ_AGENT_TLS_CHAIN_FILE"`
	AuthEnabled    envBool  `envconfig:"BQ_AGENT_AUTH_ENABLED"`
	AuthTokenFile  string   `envconfig:"BQ_AGENT_AUTH_TOKEN_FILE"`
	TemplatePath   string   `envconfig:"BQ_AGENT_TEMPLATE_PATH"`
	MetadataSource string   `envconfig:"BQ_AGENT_METADATA_SOURCE"`
	SampleRows     envInt   `envconfig:"BQ_AGENT_SAMPLE_ROWS"`
	MaxPercentNull envFloat `envconfig:"BQ_AGENT_MAX_PERCENT_NULL"`
	LogLevel       string   `envconfig:"BQ_AGENT_LOG_LEVEL"`
}

// Scalar settings decode through these types so that a variable set to a
// blank value, as in "BQ_AGENT_SAMPLE_ROWS=" in a .env file, keeps the
// value from the file or the defaults.
type (
	envBool  bool
	envInt   int
	envFloat float64
)

func (b *envBool) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*b = envBool(v)
	return nil
}

func (i *envInt) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*i = envInt(v)
	return nil
}

func (f *envFloat) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*f = envFloat(v)
	return nil
}

// applyEnvironmentVariables overrides config with environment variables.
// envconfig leaves a field alone when its variable is unset, so the
// current values are seeded first and copied back afterwards.
func applyEnvironmentVariables(cfg *Config) error {
	env := envOverrides{
		Model:          cfg.Agent.Model,
		ProjectID:      cfg.BigQuery.ProjectID,
		ProjectNumber:  cfg.BigQuery.ProjectNumber,
		Location:       cfg.BigQuery.Location,
		Dataset:        cfg.BigQuery.Dataset,
		ProfilesTable:  cfg.BigQuery.ProfilesTable,
		FewShotTable:   cfg.BigQuery.FewShotTable,
		DisplayName:    cfg.Agent.DisplayName,
		Description:    cfg.Agent.Description,
		AuthID:         cfg.Agent.AuthID,
		DelegationHdr:  cfg.Agent.DelegationHeader,
		HTTPEnabled:    envBool(cfg.HTTP.Enabled),
		HTTPAddress:    cfg.HTTP.Address,
		TLSEnabled:     envBool(cfg.HTTP.TLS.Enabled),
		TLSCertFile:    cfg.HTTP.TLS.CertFile,
		TLSKeyFile:     cfg.HTTP.TLS.KeyFile,
		TLSChainFile:   cfg.HTTP.TLS.ChainFile,
		AuthEnabled:    envBool(cfg.HTTP.Auth.Enabled),
		AuthTokenFile:  cfg.HTTP.Auth.TokenFile,
		TemplatePath:   cfg.Context.TemplatePath,
		MetadataSource: cfg.Context.MetadataSource,
		SampleRows:     envInt(cfg.Context.SampleRows),
		MaxPercentNull: envFloat(cfg.Context.MaxPercentNull),
		LogLevel:       cfg.LogLevel,
	}

	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Agent.Model = env.Model
	cfg.Agent.DisplayName = env.DisplayName
	cfg.Agent.Description = env.Description
	cfg.Agent.AuthID = env.AuthID
	cfg.Agent.DelegationHeader = env.DelegationHdr

	cfg.BigQuery.ProjectID = env.ProjectID
	cfg.BigQuery.ProjectNumber = env.ProjectNumber
	cfg.BigQuery.Location = env.Location
	cfg.BigQuery.Dataset = env.Dataset
	cfg.BigQuery.ProfilesTable = env.ProfilesTable
	cfg.BigQuery.FewShotTable = env.FewShotTable
	if env.Tables != nil {
		cfg.BigQuery.Tables = dataset.ParseTableNames(*env.Tables)
	}

	cfg.HTTP.Enabled = bool(env.HTTPEnabled)
	cfg.HTTP.Address = env.HTTPAddress
	cfg.HTTP.TLS.Enabled = bool(env.TLSEnabled)
	cfg.HTTP.TLS.CertFile = env.TLSCertFile
	cfg.HTTP.TLS.KeyFile = env.TLSKeyFile
	cfg.HTTP.TLS.ChainFile = env.TLSChainFile
	cfg.HTTP.Auth.Enabled = bool(env.AuthEnabled)
	cfg.HTTP.Auth.TokenFile = env.AuthTokenFile

	cfg.Context.TemplatePath = env.TemplatePath
	cfg.Context.MetadataSource = env.MetadataSource
	cfg.Context.SampleRows = int(env.SampleRows)
	cfg.Context.MaxPercentNull = float64(env.MaxPercentNull)

	cfg.LogLevel = env.LogLevel
	return nil
}

func envFilePath(flags CLIFlags) string {
	if flags.EnvFile != "" {
		return flags.EnvFile
	}
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVariable)); explicit != "" {
		return explicit
	}
	return ".env"
}

// LoadEnvFile loads KEY=VALUE lines from path into the process
// environment. Variables that are already set are never overridden.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		i := strings.IndexRune(line, '=')
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, unquote(strings.TrimSpace(line[i+1:]))); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return sc.Err()
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}
