package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// webhook 签名头格式：t=<unix>,v1=<hex>
// v1 = HMAC-SHA256(secret, "<unix>.<raw body>")。
const signatureTolerance = 5 * time.Minute

// ComputeSignature 按给定时间戳计算 body 的 v1 签名（hex）。
func ComputeSignature(secret string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader 组装完整签名头（本地测试 / 回放工具用）。
func SignatureHeader(secret string, ts time.Time, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), ComputeSignature(secret, ts, body))
}

// VerifySignature 校验 webhook 签名头。
// 常量时间比较，时间戳偏差超过容忍窗口的一律拒绝（防重放）。
func VerifySignature(secret, header string, body []byte, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}
	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	drift := now.Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	want := ComputeSignature(secret, ts, body)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func parseSignatureHeader(header string) (time.Time, string, error) {
	var (
		tsPart  string
		sigPart string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			tsPart = v
		case "v1":
			sigPart = v
		}
	}
	if tsPart == "" || sigPart == "" {
		return time.Time{}, "", fmt.Errorf("malformed signature header")
	}
	unix, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed signature timestamp")
	}
	return time.Unix(unix, 0), sigPart, nil
}
