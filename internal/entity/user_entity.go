package entity

import "time"

type User struct {
	Id        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Username  string    `bson:"username" json:"username"`
	Email     string    `bson:"email" json:"email"`
	Password  string    `bson:"password" json:"-"` // bcrypt hash, never serialized
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Public returns a copy of the user without the password hash.
func (u User) Public() User {
	u.Password = ""
	return u
}

// Author is the subset of a user embedded in post views.
type Author struct {
	Id       string `bson:"_id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Username string `bson:"username" json:"username"`
	Email    string `bson:"email" json:"email"`
}
