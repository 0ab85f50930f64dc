package book

import "time"

// Book carries only the availability pair the lending core needs; the rest of the
// catalog record is owned elsewhere.
type Book struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BookID          string    `gorm:"column:book_id;type:char(32);not null;uniqueIndex:ux_books_book_id" json:"book_id"`
	Title           string    `gorm:"column:title;size:200;not null" json:"title"`
	TotalCopies     int       `gorm:"column:total_copies;not null" json:"total_copies"`
	AvailableCopies int       `gorm:"column:available_copies;not null" json:"available_copies"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Book) TableName() string { return "books" }

// Lent is the number of copies currently out on active loans.
func (b *Book) Lent() int { return b.TotalCopies - b.AvailableCopies }
