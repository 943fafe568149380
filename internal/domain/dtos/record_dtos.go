package dtos

// CreateRecordRequest defines the payload for creating a record locally.
// The identifier is always generated; lastVisit defaults to today.
type CreateRecordRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Age         int    `json:"age" validate:"gte=0,lte=150"`
	Gender      string `json:"gender" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Address     string `json:"address" validate:"required"`
	LastVisit   string `json:"lastVisit" validate:"omitempty,datetime=2006-01-02"`
	Condition   string `json:"condition" validate:"required"`
	Medications string `json:"medications" validate:"max=500"`
	Treatments  string `json:"treatments" validate:"max=500"`
	Symptoms    string `json:"symptoms" validate:"max=500"`
	Notes       string `json:"notes" validate:"max=1000"`
	FollowUp    string `json:"followUp" validate:"max=100"`
	Avatar      string `json:"avatar,omitempty"`
}

// UpdateRecordRequest is the explicit edit flow. Nil fields keep their stored
// value; the identifier comes from the route and cannot change.
type UpdateRecordRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Age         *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Gender      *string `json:"gender,omitempty" validate:"omitempty,min=1"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,min=1"`
	Address     *string `json:"address,omitempty" validate:"omitempty,min=1"`
	LastVisit   *string `json:"lastVisit,omitempty" validate:"omitempty,min=1"`
	Condition   *string `json:"condition,omitempty" validate:"omitempty,min=1"`
	Medications *string `json:"medications,omitempty" validate:"omitempty,max=500"`
	Treatments  *string `json:"treatments,omitempty" validate:"omitempty,max=500"`
	Symptoms    *string `json:"symptoms,omitempty" validate:"omitempty,max=500"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	FollowUp    *string `json:"followUp,omitempty" validate:"omitempty,max=100"`
	Avatar      *string `json:"avatar,omitempty"`
}
