package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/BioMapper/pkg/errors"
)

// SecurityConfig is shared by producers, consumers and the topic manager.
type SecurityConfig struct {
	SASLEnabled   bool   `mapstructure:"sasl_enabled" yaml:"sasl_enabled"`
	SASLMechanism string `mapstructure:"sasl_mechanism" yaml:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	SASLUsername  string `mapstructure:"sasl_username" yaml:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password" yaml:"sasl_password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCAFile     string `mapstructure:"tls_ca_file" yaml:"tls_ca_file"`
	TLSInsecure   bool   `mapstructure:"tls_insecure" yaml:"tls_insecure"`
}

// Validate checks that enabled mechanisms carry their credentials.
func (s SecurityConfig) Validate() error {
	if s.SASLEnabled {
		switch s.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.Configuration("unsupported kafka sasl mechanism").WithDetail(s.SASLMechanism)
		}
		if s.SASLUsername == "" || s.SASLPassword == "" {
			return errors.Configuration("kafka sasl credentials required")
		}
	}
	if s.TLSEnabled && s.TLSCAFile == "" && !s.TLSInsecure {
		return errors.Configuration("kafka tls requires tls_ca_file or tls_insecure")
	}
	return nil
}

func (s SecurityConfig) tlsConfig() (*tls.Config, error) {
	if !s.TLSEnabled {
		return nil, nil
	}
	cfg := &tls.Config{InsecureSkipVerify: s.TLSInsecure} //nolint:gosec // opt-in via config
	if s.TLSCAFile != "" {
		caCert, err := os.ReadFile(s.TLSCAFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to read kafka ca file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.Configuration("no certificates in kafka ca file").WithDetail(s.TLSCAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func (s SecurityConfig) saslMechanism() (sasl.Mechanism, error) {
	if !s.SASLEnabled {
		return nil, nil
	}
	var (
		mech sasl.Mechanism
		err  error
	)
	switch s.SASLMechanism {
	case "PLAIN":
		mech = plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}
	case "SCRAM-SHA-256":
		mech, err = scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		mech, err = scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	default:
		return nil, errors.Configuration("unsupported kafka sasl mechanism").WithDetail(s.SASLMechanism)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create SASL mechanism")
	}
	return mech, nil
}

//Personal.AI order the ending
