package model

// Recipient 收件人模型
type Recipient struct {
	ID          uint64 `gorm:"primaryKey;column:id"`
	Name        string `gorm:"column:name"`
	Others      string `gorm:"column:others"`
	District    string `gorm:"column:district"`
	City        string `gorm:"column:city"`
	Postcode    string `gorm:"column:postcode"`
	CountryCode string `gorm:"column:country_code;size:2"`
	Phone       string `gorm:"column:phone"`
}

func (Recipient) TableName() string { return "recipients" }
