package models

// MilitaryProfile 用户档案（Firestore profiles/{uid}）
type MilitaryProfile struct {
	FullName              string  `json:"fullName" firestore:"fullName"`
	Rank                  string  `json:"rank" firestore:"rank"`
	ServiceNumber         string  `json:"serviceNumber" firestore:"serviceNumber"`
	Unit                  string  `json:"unit" firestore:"unit"`
	Email                 *string `json:"email" firestore:"email"`
	Phone                 *string `json:"phone" firestore:"phone"`
	EmergencyContactName  *string `json:"emergencyContactName" firestore:"emergencyContactName"`
	EmergencyContactPhone *string `json:"emergencyContactPhone" firestore:"emergencyContactPhone"`
}
