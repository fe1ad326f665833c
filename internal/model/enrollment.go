package model

import "time"

// PaymentProviderPaystack は受講登録レコードに記録する決済プロバイダ名。
const PaymentProviderPaystack = "paystack"

// Enrollment はユーザーのコース受講登録を表す。
// IDはEnrollmentID(UserID, CourseID)で決まり、同じ組は常に同じレコードを指す。
type Enrollment struct {
	ID                 string
	UserID             string
	CourseID           string
	CourseTitle        string
	EnrolledAt         time.Time
	PaymentProvider    string
	PaymentReference   string
	ProgressPercentage int
}

// EnrollmentID はユーザーIDとコースIDから受講登録IDを組み立てる。
func EnrollmentID(userID, courseID string) string {
	return userID + "_" + courseID
}
