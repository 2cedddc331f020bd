package model

import "time"

// EntryStatusActive はマッチング対象となるニーズ・ラーニングの状態。
const EntryStatusActive = "active"

// Need はユーザーが助けを求めている事柄を表す。
type Need struct {
	ID        string
	UserID    string
	Label     string
	Category  string
	Status    string
	CreatedAt time.Time
}

// Learning はユーザーが学んだこと、または他者に教えられることを表す。
type Learning struct {
	ID        string
	UserID    string
	Label     string
	Category  string
	Status    string
	CreatedAt time.Time
}

// Extraction はチェックイン本文から抽出されたニーズとラーニングのラベル。
type Extraction struct {
	Needs     []Skill `json:"needs"`
	Learnings []Skill `json:"learnings"`
}
