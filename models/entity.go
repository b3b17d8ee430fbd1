package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Entity is anything the console can list and insert
type Entity interface {
	Describe() string
	Insert(db *gorm.DB) error
}

// Sensor is a soil probe reachable at an I2C address
type Sensor struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	Address int  `gorm:"uniqueIndex;not null" json:"address"`
}

func (Sensor) TableName() string { return "sensors" }

func (s *Sensor) Describe() string {
	return fmt.Sprintf("[%d | 0x%02x]", s.ID, s.Address)
}

func (s *Sensor) Insert(db *gorm.DB) error {
	return db.Create(s).Error
}

// Species holds the minimum moisture a kind of plant tolerates
type Species struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	MinMoisture float64 `json:"min_moisture"`
}

func (Species) TableName() string { return "species" }

func (s *Species) Describe() string {
	return fmt.Sprintf("[%d | %s | %.2f]", s.ID, s.Name, s.MinMoisture)
}

func (s *Species) Insert(db *gorm.DB) error {
	return db.Create(s).Error
}

// Plant links a named plant to its species and soil sensor
type Plant struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SpeciesID uint   `gorm:"index" json:"species_id"`
	SensorID  uint   `gorm:"index" json:"sensor_id"`
	Name      string `gorm:"not null" json:"name"`
}

func (Plant) TableName() string { return "plants" }

func (p *Plant) Describe() string {
	return fmt.Sprintf("[%d | %d | %d | %s]", p.ID, p.SpeciesID, p.SensorID, p.Name)
}

func (p *Plant) Insert(db *gorm.DB) error {
	return db.Create(p).Error
}
