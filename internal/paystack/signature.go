// Package paystack はPaystackの決済Webhookとチェックアウトに関する処理を提供する。
package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

// SignatureHeader はPaystackが署名を載せるリクエストヘッダ名。
const SignatureHeader = "x-paystack-signature"

// ErrInvalidSignature は署名検証に失敗したことを表す。
var ErrInvalidSignature = errors.New("invalid paystack signature")

// Sign はrawBodyに対するHMAC-SHA512署名を小文字16進で返す。
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify はrawBodyとsecretから計算した署名がprovidedSignatureと一致するかを判定する。
// rawBodyは受信したままのバイト列でなければならない（再シリアライズしたJSONでは一致しない）。
// 比較は定数時間で行い、長さが異なる場合や空の場合はfalseを返す。
func Verify(rawBody []byte, providedSignature, secret string) bool {
	if providedSignature == "" || secret == "" {
		return false
	}
	expected := Sign(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
