package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/akarpovs/cryptodrive/internal/flagx"
	"github.com/akarpovs/cryptodrive/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. Duration fields use timex.Duration, which accepts both string
// values such as "30m" and integer nanoseconds. After unmarshalling, the
// values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	EncryptionPassphrase        string         `json:"encryption_passphrase"`
	EncryptionSalt              string         `json:"encryption_salt"`
	MaxFileSize                 int64          `json:"max_file_size"`
	TotalServerStorage          int64          `json:"total_server_storage"`
	UserQuotaFraction           float64        `json:"user_quota_fraction"`
	BlobBackend                 string         `json:"blob_backend"`
	BlobFSRoot                  string         `json:"blob_fs_root"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; when neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.EncryptionPassphrase = c.EncryptionPassphrase
	config.EncryptionSalt = c.EncryptionSalt
	config.MaxFileSize = c.MaxFileSize
	config.TotalServerStorage = c.TotalServerStorage
	config.UserQuotaFraction = c.UserQuotaFraction
	config.BlobBackend = c.BlobBackend
	config.BlobFSRoot = c.BlobFSRoot
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
