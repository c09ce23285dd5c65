package engine

import (
	"os"
	"strconv"

	"dbshuttle/internal/config"
)

// ConnectionArgs builds the host/port/user flags shared by every client tool.
// The password never appears on the command line; see PasswordEnv.
func ConnectionArgs(ep config.Endpoint, flavor string) []string {
	args := []string{
		"--host=" + ep.Host,
		"--port=" + strconv.Itoa(ep.Port),
		"--user=" + ep.User,
	}
	return append(args, TLSArgs(ep.TLS, flavor)...)
}

// TLSArgs translates the typed TLS settings into client flags.
//
// MySQL clients take --ssl-mode=VERIFY_CA. MariaDB clients reject --ssl-mode
// and only offer --ssl-verify-server-cert, which also checks the host name,
// so they get plain --ssl; the CA chain is still verified by the driver
// probe before any transfer starts.
func TLSArgs(tls config.TLSConfig, flavor string) []string {
	if !tls.Enabled {
		return nil
	}

	var args []string
	if flavor == config.FlavorMariaDB {
		args = []string{"--ssl"}
	} else {
		args = []string{"--ssl-mode=VERIFY_CA"}
	}
	if tls.CA != "" {
		args = append(args, "--ssl-ca="+tls.CA)
	}
	if tls.Cert != "" {
		args = append(args, "--ssl-cert="+tls.Cert)
	}
	if tls.Key != "" {
		args = append(args, "--ssl-key="+tls.Key)
	}
	return args
}

// BackupArgs builds the mysqldump arguments for a consistent, streaming dump
func BackupArgs(ep config.Endpoint, flavor string) []string {
	args := ConnectionArgs(ep, flavor)
	args = append(args,
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		"--events",
	)
	return append(args, ep.Database)
}

// RestoreArgs builds the mysql arguments for loading a dump into ep.Database.
// The database must already exist.
func RestoreArgs(ep config.Endpoint, flavor string) []string {
	return append(ConnectionArgs(ep, flavor), ep.Database)
}

// AdminPingArgs builds the mysqladmin arguments for a liveness check
func AdminPingArgs(ep config.Endpoint, connectTimeout int, flavor string) []string {
	args := ConnectionArgs(ep, flavor)
	if connectTimeout > 0 {
		args = append(args, "--connect-timeout="+strconv.Itoa(connectTimeout))
	}
	return append(args, "ping")
}

// PasswordEnv returns the process environment with MYSQL_PWD set
func PasswordEnv(password string) []string {
	env := os.Environ()
	if password == "" {
		return env
	}
	return append(env, "MYSQL_PWD="+password)
}
