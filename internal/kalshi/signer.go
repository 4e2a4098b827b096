package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Signer 按交易所要求对每个请求做 RSA-PSS (SHA-256) 签名
// 签名串 = 毫秒时间戳 + HTTP 方法 + 请求路径（不含查询参数）
type Signer struct {
	apiKey string
	key    *rsa.PrivateKey
}

// NewSigner 从 PEM 文件加载私钥（支持 PKCS#1 和 PKCS#8）
func NewSigner(apiKey, privateKeyPath string) (*Signer, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "kalshi: read private key %s", privateKeyPath)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.Errorf("kalshi: no PEM block in %s", privateKeyPath)
	}
	var key *rsa.PrivateKey
	if k, perr := x509.ParsePKCS1PrivateKey(block.Bytes); perr == nil {
		key = k
	} else if k, perr := x509.ParsePKCS8PrivateKey(block.Bytes); perr == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("kalshi: %s is not an RSA key", privateKeyPath)
		}
		key = rsaKey
	} else {
		return nil, errors.Wrap(perr, "kalshi: parse private key")
	}
	return &Signer{apiKey: apiKey, key: key}, nil
}

// Headers 生成一次请求的认证头
func (s *Signer) Headers(timestampMS int64, method, path string) (map[string]string, error) {
	// 查询参数不参与签名
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	ts := fmt.Sprintf("%d", timestampMS)
	msg := ts + strings.ToUpper(method) + path

	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, errors.Wrap(err, "kalshi: sign request")
	}
	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.apiKey,
		"KALSHI-ACCESS-TIMESTAMP": ts,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
	}, nil
}
