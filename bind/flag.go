// Copyright 2022 The forwarder Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package bind

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/mmatczuk/anyflag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saucelabs/forwarder-krb5"
	"github.com/saucelabs/forwarder-krb5/fileurl"
	"github.com/saucelabs/forwarder-krb5/httplog"
	"github.com/saucelabs/forwarder-krb5/kerberos"
	"github.com/saucelabs/forwarder-krb5/log"
)

func DNSConfig(fs *pflag.FlagSet, cfg *forwarder.DNSConfig) {
	fs.VarP(anyflag.NewSliceValue[*url.URL](nil, &cfg.Servers, forwarder.ParseDNSServerURL),
		"dns-server", "n", "DNS server IP or URL ex. 1.1.1.1 or udp://1.1.1.1:53 (can be specified multiple times)")
	fs.DurationVar(&cfg.Timeout,
		"dns-timeout", cfg.Timeout, "timeout for DNS queries if DNS server is specified")
	fs.BoolVar(&cfg.RoundRobin,
		"dns-round-robin", cfg.RoundRobin, "rotate through the configured DNS servers instead of always using the first one")
}

func PAC(fs *pflag.FlagSet, pac **url.URL) {
	fs.VarP(anyflag.NewValue[*url.URL](*pac, pac, fileurl.ParseFilePathOrURL),
		"pac", "p", "local file `path or URL` to PAC content, use \"-\" to read from stdin")
}

func HTTPProxyConfig(fs *pflag.FlagSet, cfg *forwarder.HTTPProxyConfig) {
	HTTPServerConfig(fs, &cfg.HTTPServerConfig, "", forwarder.HTTPScheme, forwarder.HTTPSScheme)
	fs.VarP(anyflag.NewValue[*url.URL](cfg.UpstreamProxy, &cfg.UpstreamProxy, forwarder.ParseProxyURL),
		"upstream-proxy", "u", "upstream proxy URL")
	fs.BoolVarP(&cfg.ProxyLocalhost, "proxy-localhost", "t", cfg.ProxyLocalhost,
		"allow proxying requests to localhost destinations")
	fs.BoolVar(&cfg.LogHTTPRequests, "log-http-requests", cfg.LogHTTPRequests,
		"log headers of proxied HTTP requests and responses")
}

func KerberosConfig(fs *pflag.FlagSet, cfg *kerberos.Config) {
	fs.StringVar(&cfg.Realm, "kerberos-realm", cfg.Realm, "Kerberos realm used to resolve principals from keytabs")
	fs.StringVar(&cfg.KeytabsPath, "kerberos-keytabs-path", cfg.KeytabsPath, "directory containing one <username>.keytab file per proxy user")
	fs.DurationVar(&cfg.CacheExpiration, "kerberos-cache-expiration", cfg.CacheExpiration, "how long a kinit ticket is considered valid before a new one is acquired")
	fs.Var(anyflag.NewSliceValue[int](cfg.SPNEGOCodes, &cfg.SPNEGOCodes, parseStatusCode),
		"kerberos-spnego-codes", "upstream status codes that mark a response as requiring a SPNEGO retry (can be specified multiple times)")
	fs.Var(anyflag.NewSliceValue[*url.URL](nil, &cfg.KNOXURLs, parseKNOXURL),
		"kerberos-knox-urls", "KNOX endpoint URLs whose redirects trigger a Kerberos-authenticated retry (can be specified multiple times)")
	fs.Var(anyflag.NewSliceValue[int](cfg.KNOXRedirectCodes, &cfg.KNOXRedirectCodes, parseStatusCode),
		"kerberos-knox-codes", "status codes from the KNOX URLs that are treated as a redirect trigger (can be specified multiple times)")
	fs.StringVar(&cfg.KNOXUserAgentOverride, "kerberos-knox-user-agent-override", cfg.KNOXUserAgentOverride, "User-Agent sent to KNOX URLs instead of the client's own")
	fs.Var(anyflag.NewSliceValue[kerberos.HostMapping](nil, &cfg.HostMappings, parseHostMappingFlag),
		"kerberos-host-mapping", "public=internal URL pair to remap before proxying and to remap back in redirect responses (can be specified multiple times)")
}

// UpstreamProxyKerberosConfig binds the legacy Kerberos client that
// authenticates this process to its own upstream proxy, as opposed to
// KerberosConfig which authenticates outbound requests to arbitrary
// destination hosts.
func UpstreamProxyKerberosConfig(fs *pflag.FlagSet, cfg *forwarder.KerberosConfig) {
	fs.BoolVar(&cfg.Enabled, "upstream-proxy-kerberos-enabled", cfg.Enabled,
		"authenticate to the upstream proxy with Kerberos SPNEGO")
	fs.BoolVar(&cfg.AuthUpstreamProxy, "upstream-proxy-kerberos-auth-upstream-proxy", cfg.AuthUpstreamProxy,
		"send the negotiated SPNEGO token as Proxy-Authorization when CONNECTing through the upstream proxy")
	fs.BoolVar(&cfg.RunDiagnostics, "upstream-proxy-kerberos-run-diagnostics", cfg.RunDiagnostics,
		"print Kerberos client diagnostics on startup and exit")
	fs.StringVar(&cfg.CfgFilePath, "upstream-proxy-kerberos-config", cfg.CfgFilePath, "path to krb5.conf")
	fs.StringVar(&cfg.KeyTabFilePath, "upstream-proxy-kerberos-keytab", cfg.KeyTabFilePath, "path to the keytab file")
	fs.StringVar(&cfg.UserName, "upstream-proxy-kerberos-username", cfg.UserName, "Kerberos principal username")
	fs.StringVar(&cfg.UserRealm, "upstream-proxy-kerberos-realm", cfg.UserRealm, "Kerberos principal realm")
}

func parseHostMappingFlag(s string) (kerberos.HostMapping, error) {
	return kerberos.ParseHostMapping(s)
}

func parseStatusCode(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid status code %q: %w", s, err)
	}
	return n, nil
}

func parseKNOXURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q, supported schemes are: http, https", u.Scheme)
	}
	return u, nil
}

func HTTPTransportConfig(fs *pflag.FlagSet, cfg *forwarder.HTTPTransportConfig) {
	fs.DurationVar(&cfg.DialTimeout,
		"http-dial-timeout", cfg.DialTimeout, "dial timeout for HTTP connections")
	fs.DurationVar(&cfg.KeepAlive,
		"http-keep-alive", cfg.KeepAlive, "keep alive interval for HTTP connections")
	fs.DurationVar(&cfg.TLSHandshakeTimeout,
		"http-tls-handshake-timeout", cfg.TLSHandshakeTimeout, "TLS handshake timeout for HTTP connections")
	fs.IntVar(&cfg.MaxIdleConns,
		"http-max-idle-conns", cfg.MaxIdleConns, "maximum number of idle connections for HTTP connections")
	fs.IntVar(&cfg.MaxIdleConnsPerHost,
		"http-max-idle-conns-per-host", cfg.MaxIdleConnsPerHost, "maximum number of idle connections per host for HTTP connections")
	fs.IntVar(&cfg.MaxConnsPerHost,
		"http-max-conns-per-host", cfg.MaxConnsPerHost, "maximum number of connections per host for HTTP connections")
	fs.DurationVar(&cfg.IdleConnTimeout,
		"http-idle-conn-timeout", cfg.IdleConnTimeout, "idle connection timeout for HTTP connections")
	fs.DurationVar(&cfg.ResponseHeaderTimeout,
		"http-response-header-timeout", cfg.ResponseHeaderTimeout, "response header timeout for HTTP connections")
	fs.DurationVar(&cfg.ExpectContinueTimeout,
		"http-expect-continue-timeout", cfg.ExpectContinueTimeout, "expect continue timeout for HTTP connections")

	TLSConfig(fs, &cfg.TLSClientConfig)
}

func HTTPServerConfig(fs *pflag.FlagSet, cfg *forwarder.HTTPServerConfig, prefix string, schemes ...forwarder.Scheme) {
	namePrefix := prefix
	if namePrefix != "" {
		namePrefix += "-"
	}

	usagePrefix := prefix
	if usagePrefix != "" {
		usagePrefix += " "
	}

	if schemes == nil {
		schemes = []forwarder.Scheme{
			forwarder.HTTPScheme,
			forwarder.HTTPSScheme,
			forwarder.HTTP2Scheme,
		}
	}

	supportedSchemesStr := func() string {
		var sb strings.Builder
		for _, s := range schemes {
			if sb.Len() > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(string(s))
		}
		return sb.String()
	}

	fs.VarP(anyflag.NewValue[forwarder.Scheme](cfg.Protocol, &cfg.Protocol,
		anyflag.EnumParser[forwarder.Scheme](schemes...)),
		namePrefix+"protocol", "", usagePrefix+"HTTP server protocol, one of "+supportedSchemesStr())
	fs.StringVarP(&cfg.Addr,
		namePrefix+"address", "", cfg.Addr, usagePrefix+"HTTP server listen address in the form of `host:port`")
	fs.StringVar(&cfg.CertFile,
		namePrefix+"cert-file", cfg.CertFile, usagePrefix+"HTTP server TLS certificate file")
	fs.StringVar(&cfg.KeyFile,
		namePrefix+"key-file", cfg.KeyFile, usagePrefix+"HTTP server TLS key file")
	fs.DurationVar(&cfg.ReadTimeout,
		namePrefix+"read-timeout", cfg.ReadTimeout, usagePrefix+"HTTP server read timeout")
	fs.DurationVar(&cfg.ReadHeaderTimeout,
		namePrefix+"read-header-timeout", cfg.ReadHeaderTimeout, usagePrefix+"HTTP server read header timeout")
	fs.DurationVar(&cfg.WriteTimeout,
		namePrefix+"write-timeout", cfg.WriteTimeout, usagePrefix+"HTTP server write timeout")
	fs.VarP(anyflag.NewValue[*url.Userinfo](cfg.BasicAuth, &cfg.BasicAuth, forwarder.ParseUserinfo),
		namePrefix+"basic-auth", "", usagePrefix+"HTTP server basic-auth in the form of `username:password`")
	fs.Var(anyflag.NewValue[httplog.Mode](cfg.LogHTTPMode, &cfg.LogHTTPMode, parseHTTPLogMode),
		namePrefix+"log-http-mode", usagePrefix+"log http request, one of none, short_url, url, headers, body, errors")
	fs.StringVar(&cfg.PromNamespace,
		namePrefix+"prom-namespace", cfg.PromNamespace, usagePrefix+"Prometheus namespace for metrics emitted by this server")
}

func parseHTTPLogMode(val string) (httplog.Mode, error) {
	m := httplog.Mode(val)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

func TLSConfig(fs *pflag.FlagSet, cfg *forwarder.TLSClientConfig) {
	fs.BoolVar(&cfg.InsecureSkipVerify, "insecure-skip-verify", cfg.InsecureSkipVerify, "skip TLS verification")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.VarP(NewFileFlag(&cfg.File,
		forwarder.OpenFileParser(os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600, 0o700)),
		"log-file", "", "log file path (default: stdout)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
}

func MarkFlagHidden(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.Flags().MarkHidden(name); err != nil {
			panic(err)
		}
	}
}

func MarkFlagRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func MarkFlagFilename(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagFilename(name); err != nil {
			panic(err)
		}
	}
}
