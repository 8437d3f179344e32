// Package models defines the Chutes platform resource types consumed
// by the typed client.
package models

import "time"

// Chute is a deployed workload unit on the platform.
type Chute struct {
	ID           string                 `json:"chute_id"`
	Name         string                 `json:"name"`
	Status       string                 `json:"status,omitempty"`
	ImageID      string                 `json:"image_id,omitempty"`
	Public       bool                   `json:"public"`
	NodeSelector map[string]interface{} `json:"node_selector,omitempty"`
	CreatedAt    time.Time              `json:"created_at,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at,omitempty"`
}

// Cord is a named remotely-invocable function exposed by a chute.
type Cord struct {
	Name       string                 `json:"name"`
	Ptyp       string                 `json:"ptyp,omitempty"`
	Rtyp       string                 `json:"rtyp,omitempty"`
	Stream     bool                   `json:"stream,omitempty"`
	InputArgs  []interface{}          `json:"input_args,omitempty"`
	Definition map[string]interface{} `json:"definition,omitempty"`
}

// Image is a container template used to build a chute.
type Image struct {
	ID        string    `json:"image_id"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag,omitempty"`
	Public    bool      `json:"public"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// User is the authenticated platform account.
type User struct {
	ID       string  `json:"user_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance,omitempty"`
}

// DeveloperDeposit is the deposit required for developer access.
type DeveloperDeposit struct {
	Deposit float64 `json:"deposit"`
	Address string  `json:"address,omitempty"`
}

// ChuteDeployRequest is the payload for deploying a new chute.
type ChuteDeployRequest struct {
	Name         string                 `json:"name"`
	ImageID      string                 `json:"image_id,omitempty"`
	Image        string                 `json:"image,omitempty"`
	Public       bool                   `json:"public"`
	NodeSelector map[string]interface{} `json:"node_selector,omitempty"`
}

// CordInvocation is the payload for invoking a cord on a chute.
type CordInvocation struct {
	Args   []interface{}          `json:"args,omitempty"`
	Kwargs map[string]interface{} `json:"kwargs,omitempty"`
}
