package config

import (
	"flag"
	"os"
	"time"

	"github.com/akarpovs/cryptodrive/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   content encryption passphrase
//	-m int      max upload size, bytes
//	-q int      total server storage budget, bytes
//	-f float    per-user quota fraction of the total budget
//	-o string   blob backend: s3, fs or memory
//	-r string   fs backend root directory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-k", "-m", "-q", "-f", "-o", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.EncryptionPassphrase, "k", config.EncryptionPassphrase, "content encryption passphrase")
	fs.Int64Var(&config.MaxFileSize, "m", config.MaxFileSize, "max upload size in bytes")
	fs.Int64Var(&config.TotalServerStorage, "q", config.TotalServerStorage, "total server storage budget in bytes")
	fs.Float64Var(&config.UserQuotaFraction, "f", config.UserQuotaFraction, "per-user quota fraction")
	fs.StringVar(&config.BlobBackend, "o", config.BlobBackend, "blob backend (s3, fs, memory)")
	fs.StringVar(&config.BlobFSRoot, "r", config.BlobFSRoot, "fs backend root directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
