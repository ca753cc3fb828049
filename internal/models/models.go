package models

// Availability answers the yes/no amenity questions of a cafe.
type Availability string

const (
	AvailabilityNo  Availability = "No"
	AvailabilityYes Availability = "Pretty Yes"
)

// Valid reports whether a is one of the known values.
func (a Availability) Valid() bool {
	return a == AvailabilityNo || a == AvailabilityYes
}

// WifiQuality is an ordered rating of a cafe's wifi. The spelling of
// WifiExcellent matches the values stored by earlier deployments.
type WifiQuality string

const (
	WifiBad        WifiQuality = "Bad"
	WifiFairlyGood WifiQuality = "Fairly Good"
	WifiMedium     WifiQuality = "Medium"
	WifiExcellent  WifiQuality = "Excelent"
)

var wifiRank = map[WifiQuality]int{
	WifiBad:        1,
	WifiFairlyGood: 2,
	WifiMedium:     3,
	WifiExcellent:  4,
}

// Valid reports whether q is one of the known levels.
func (q WifiQuality) Valid() bool {
	_, ok := wifiRank[q]
	return ok
}

// Rank returns 1 (worst) to 4 (best), or 0 for unknown values.
func (q WifiQuality) Rank() int {
	return wifiRank[q]
}

type User struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Email    string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password string    `gorm:"size:250;not null" json:"-"`
	Name     string    `gorm:"size:100" json:"name"`
	Cafes    []Cafe    `gorm:"foreignKey:AuthorID" json:"-"` // One-to-Many with Cafe
	Comments []Comment `gorm:"foreignKey:AuthorID" json:"-"` // One-to-Many with Comment
}

type Cafe struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	AuthorID     uint         `gorm:"not null;index" json:"author_id"`
	Author       *User        `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Name         string       `gorm:"size:250;uniqueIndex;not null" json:"name"`
	MapURL       string       `gorm:"size:250;not null" json:"map_url"`
	ImgURL       string       `gorm:"size:250;not null" json:"img_url"`
	Location     string       `gorm:"size:250;not null" json:"location"`
	HasSockets   Availability `gorm:"size:250;not null" json:"has_sockets"`
	HasToilet    Availability `gorm:"size:250;not null" json:"has_toilet"`
	HasWifi      WifiQuality  `gorm:"size:250;not null" json:"has_wifi"`
	CanTakeCalls Availability `gorm:"size:250;not null" json:"can_take_calls"`
	Seats        int          `gorm:"not null" json:"seats"`
	CoffeePrice  int          `gorm:"not null" json:"coffee_price"`
	Comments     []Comment    `gorm:"foreignKey:CafeID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// TableName keeps the table name used by earlier deployments.
func (Cafe) TableName() string {
	return "cafe"
}

type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Text     string `gorm:"type:text;not null" json:"text"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	CafeID   uint   `gorm:"column:coffe_id;not null;index" json:"cafe_id"`
}

// CafeFields holds the user-editable attributes of a cafe.
type CafeFields struct {
	Name         string
	MapURL       string
	ImgURL       string
	Location     string
	HasSockets   Availability
	HasToilet    Availability
	HasWifi      WifiQuality
	CanTakeCalls Availability
	Seats        int
	CoffeePrice  int
}

// Apply overwrites every mutable attribute of c with f.
func (f CafeFields) Apply(c *Cafe) {
	c.Name = f.Name
	c.MapURL = f.MapURL
	c.ImgURL = f.ImgURL
	c.Location = f.Location
	c.HasSockets = f.HasSockets
	c.HasToilet = f.HasToilet
	c.HasWifi = f.HasWifi
	c.CanTakeCalls = f.CanTakeCalls
	c.Seats = f.Seats
	c.CoffeePrice = f.CoffeePrice
}
