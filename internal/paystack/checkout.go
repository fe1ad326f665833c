package paystack

import (
	"fmt"
	"time"
)

// CurrencyNGN はチェックアウトで使用する通貨コード。
const CurrencyNGN = "NGN"

// Checkout はブラウザ側のPaystackインラインチェックアウトに渡すパラメータ。
// Metadataは決済成功時にWebhookでそのまま返却され、受講登録に使用される。
type Checkout struct {
	Email     string   `json:"email"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Reference string   `json:"ref"`
	Metadata  Metadata `json:"metadata"`
}

// NewCheckout はコース購入用のチェックアウトパラメータを組み立てる。
// priceはNGN単位で、Paystackが要求するkobo単位（100倍）に変換する。
func NewCheckout(email, userID, courseID, courseTitle string, price int64, now time.Time) Checkout {
	return Checkout{
		Email:     email,
		Amount:    price * 100,
		Currency:  CurrencyNGN,
		Reference: fmt.Sprintf("NEXUS-%s-%d", courseID, now.UnixMilli()),
		Metadata: Metadata{
			UserID:      userID,
			CourseID:    courseID,
			CourseTitle: courseTitle,
		},
	}
}
