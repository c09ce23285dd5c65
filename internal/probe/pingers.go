package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"dbshuttle/internal/config"
	"dbshuttle/internal/engine"
)

// DriverPinger checks liveness through the MySQL wire protocol
type DriverPinger struct {
	// Open returns a handle for dsn; nil means sql.Open("mysql", dsn)
	Open func(dsn string) (*sql.DB, error)
}

// Ping opens a short-lived connection and pings it
func (p *DriverPinger) Ping(ctx context.Context, ep config.Endpoint) error {
	dsn, err := DSN(ep)
	if err != nil {
		return err
	}

	open := p.Open
	if open == nil {
		open = func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) }
	}

	db, err := open(dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", ep.Address(), err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", ep.Address(), err)
	}
	return nil
}

// DSN builds a go-sql-driver/mysql data source name for ep,
// registering TLS material under a per-endpoint name when enabled
func DSN(ep config.Endpoint) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = ep.User
	cfg.Passwd = ep.Password
	cfg.Net = "tcp"
	cfg.Addr = ep.Address()
	cfg.DBName = ep.Database
	cfg.Timeout = ep.ConnectTimeout

	if ep.TLS.Enabled {
		tlsCfg, err := TLSClientConfig(ep.TLS)
		if err != nil {
			return "", err
		}
		name := "dbshuttle-" + strings.NewReplacer(":", "-", "/", "-").Replace(ep.Address())
		if err := mysql.RegisterTLSConfig(name, tlsCfg); err != nil {
			return "", fmt.Errorf("register TLS config: %w", err)
		}
		cfg.TLSConfig = name
	}

	return cfg.FormatDSN(), nil
}

// TLSClientConfig mirrors the client's VERIFY_CA mode: the server chain must
// verify against the CA, the host name is not checked.
func TLSClientConfig(t config.TLSConfig) (*tls.Config, error) {
	pem, err := os.ReadFile(t.CA)
	if err != nil {
		return nil, fmt.Errorf("read CA %s: %w", t.CA, err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", t.CA)
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, // replaced by VerifyPeerCertificate below
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("server presented no certificate")
			}
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				c, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs = append(certs, c)
			}
			inter := x509.NewCertPool()
			for _, c := range certs[1:] {
				inter.AddCert(c)
			}
			_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: inter})
			return err
		},
	}

	if t.Cert != "" && t.Key != "" {
		pair, err := tls.LoadX509KeyPair(t.Cert, t.Key)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	return cfg, nil
}

// AdminPinger runs `mysqladmin ping`, the administrative liveness check
type AdminPinger struct {
	Path   string
	Flavor string
}

// Ping runs one mysqladmin ping bounded by ctx
func (p *AdminPinger) Ping(ctx context.Context, ep config.Endpoint) error {
	path := p.Path
	if path == "" {
		path = "mysqladmin"
	}

	connectTimeout := 0
	if deadline, ok := ctx.Deadline(); ok {
		connectTimeout = int(time.Until(deadline).Round(time.Second) / time.Second)
		if connectTimeout < 1 {
			connectTimeout = 1
		}
	}

	cmd := exec.CommandContext(ctx, path, engine.AdminPingArgs(ep, connectTimeout, p.Flavor)...)
	cmd.Env = engine.PasswordEnv(ep.Password)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return fmt.Errorf("mysqladmin ping %s: %w", ep.Address(), err)
		}
		return fmt.Errorf("mysqladmin ping %s: %w: %s", ep.Address(), err, msg)
	}
	return nil
}

// NewPinger returns the pinger selected by PROBE_METHOD
func NewPinger(method, mysqladminPath, flavor string) Pinger {
	if method == config.ProbeMySQLAdmin {
		return &AdminPinger{Path: mysqladminPath, Flavor: flavor}
	}
	return &DriverPinger{}
}
