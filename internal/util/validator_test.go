package util

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// TestParseAmount_Valid 测试有效金额
func TestParseAmount_Valid(t *testing.T) {
	testCases := map[string]string{
		"0.01":       "0.01",
		"1":          "1",
		" 100.5 ":    "100.5",
		"9999999.99": "9999999.99",
	}

	for in, want := range testCases {
		got, err := ParseAmount(in)
		if err != nil {
			t.Errorf("ParseAmount(%q) error = %v, want nil", in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
}

// TestParseAmount_Invalid 测试无效金额（异常）
func TestParseAmount_Invalid(t *testing.T) {
	testCases := []string{"", "abc", "0", "-0.01", "-100", "10000000", "100000000", "1.005"}

	for _, in := range testCases {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) error = nil, want error", in)
		}
	}
}

// TestValidateDate_Valid 测试有效日期
func TestValidateDate_Valid(t *testing.T) {
	testCases := []string{
		"2024-01-01",
		"2024-12-31",
		"2025-06-15",
	}

	for _, date := range testCases {
		if _, err := ValidateDate(date); err != nil {
			t.Errorf("ValidateDate(%q) error = %v, want nil", date, err)
		}
	}
}

// TestValidateDate_InvalidFormat 测试无效格式（异常）
func TestValidateDate_InvalidFormat(t *testing.T) {
	testCases := []string{
		"",
		"2024/01/01",
		"01-01-2024",
		"2024-1-1",
		"not-a-date",
		"2024-13-01", // 月份错误
		"2024-01-32", // 日期错误
	}

	for _, date := range testCases {
		if _, err := ValidateDate(date); err == nil {
			t.Errorf("ValidateDate(%q) error = nil, want error", date)
		}
	}
}

// TestParseDateTime 测试多种时间格式
func TestParseDateTime(t *testing.T) {
	for _, s := range []string{"2025-12-03T08:00:00+08:00", "2025-12-03T00:00:00", "2025-12-03"} {
		got, err := ParseDateTime(s)
		if err != nil {
			t.Errorf("ParseDateTime(%q) error = %v", s, err)
			continue
		}
		if got.Format("2006-01-02 15:04") != "2025-12-03 00:00" {
			t.Errorf("ParseDateTime(%q) = %v", s, got)
		}
	}
	if _, err := ParseDateTime("yesterday"); err == nil {
		t.Error("ParseDateTime(\"yesterday\") error = nil, want error")
	}
}

// TestValidateCategory 测试分类名称
func TestValidateCategory(t *testing.T) {
	for _, category := range []string{"餐饮", "交通", "购物", "娱乐", "工资"} {
		if err := ValidateCategory(category); err != nil {
			t.Errorf("ValidateCategory(%q) error = %v, want nil", category, err)
		}
	}
	if err := ValidateCategory(""); err == nil {
		t.Error("ValidateCategory(\"\") error = nil, want error")
	}
	if err := ValidateCategory("这是一个非常非常非常非常非常长的分类名称超过了合理的限制范围"); err == nil {
		t.Error("ValidateCategory() with long string error = nil, want error")
	}
}

// TestValidateUsername 测试用户名规则
func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"abc", "alice_01", "ABCDEFGHIJKLMNOPQRST"} {
		if err := ValidateUsername(ok); err != nil {
			t.Errorf("ValidateUsername(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"ab", "has space", "名字", "ABCDEFGHIJKLMNOPQRSTU"} {
		if err := ValidateUsername(bad); err == nil {
			t.Errorf("ValidateUsername(%q) error = nil, want error", bad)
		}
	}
}

// TestIsStrongPassword 测试密码强度
func TestIsStrongPassword(t *testing.T) {
	testCases := map[string]bool{
		"Passw0rd":  true,
		"password1": false,
		"PASSWORD1": false,
		"Password":  false,
		"Pa1":       false,
		strings.Repeat("Aa1", 11): false, // 33 位
	}
	for pwd, want := range testCases {
		if got := IsStrongPassword(pwd); got != want {
			t.Errorf("IsStrongPassword(%q) = %v, want %v", pwd, got, want)
		}
	}
}
