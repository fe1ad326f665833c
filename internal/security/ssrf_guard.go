package security

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrResponseTooLarge は応答ボディが上限を超えたことを表す。
var ErrResponseTooLarge = errors.New("response body exceeds the size limit")

// allowedSchemes は外部取得で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は事前検証で拒否するネットワーク範囲。
// 接続時の検証はsafeurlがDNS解決後のIPに対して行う。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドのメタデータIPを含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		out = append(out, network)
	}
	return out
}

// SSRFGuard は設定で指定された外部URL（ブログフィード等）を安全に取得する。
// プライベートIP、ループバック、リンクローカルへの接続はsafeurlのDialerで遮断される。
type SSRFGuard struct {
	client          *http.Client
	maxResponseSize int64
}

// NewSSRFGuard はタイムアウトと応答サイズ上限を指定してSSRFGuardを生成する。
func NewSSRFGuard(timeout time.Duration, maxResponseSize int64) *SSRFGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &SSRFGuard{
		client:          safeurl.Client(config).Client,
		maxResponseSize: maxResponseSize,
	}
}

// Client はSSRF防止付きのHTTPクライアントを返す。
func (g *SSRFGuard) Client() *http.Client {
	return g.client
}

// MaxResponseSize は応答ボディの上限バイト数を返す。
func (g *SSRFGuard) MaxResponseSize() int64 {
	return g.maxResponseSize
}

// ReadLimited はrから最大maxバイトを読み、超えた場合はErrResponseTooLargeを返す。
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > max {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
// スキームがhttp/https以外、ホストが空、ブロック対象のIPまたはlocalhostの場合はエラーを返す。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip)
			}
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}
