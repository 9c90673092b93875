package dto

type SignUpRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	BirthDate       string `json:"birthDate" validate:"required,day"`
	Position        string `json:"position" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone"`
	Photo           string `json:"photo,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type ProfileRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Phone     string `json:"phone" validate:"required,phone"`
	BirthDate string `json:"birthDate" validate:"required,day"`
	Position  string `json:"position" validate:"required"`
}

type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,theme"`
}

type PhotoRequest struct {
	Photo string `json:"photo" validate:"required"`
}

type FiltersRequest struct {
	Location string `json:"location" validate:"max=120"`
	Kind     string `json:"kind" validate:"max=60"`
}

type MatchRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Date       string `json:"date" validate:"required,day"`
	Time       string `json:"time" validate:"required,clock"`
	Location   string `json:"location" validate:"required,max=200"`
	Sport      string `json:"sport" validate:"required,sport"`
	Kind       string `json:"kind" validate:"required,max=60"`
	TotalSlots int    `json:"totalSlots" validate:"positive,lte=100"`
	Image      string `json:"image,omitempty"`
}

type RegistrationRequest struct {
	Edit     bool   `json:"edit"`
	Name     string `json:"name" validate:"max=120"`
	Nickname string `json:"nickname" validate:"max=60"`
	Position string `json:"position"`
}

type InviteRequest struct {
	FriendID string `json:"friendId" validate:"required"`
}

type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=50"`
}

type UploadRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

type SessionResponse struct {
	UserID string `json:"userId"`
}

type FiltersResponse struct {
	Location string `json:"location"`
	Kind     string `json:"kind"`
}

type FlashResponse struct {
	MatchName string `json:"matchName,omitempty"`
	Message   string `json:"message,omitempty"`
}

type UploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	URL       string `json:"url"`
}

type RegistrationResponse struct {
	MatchID   string `json:"matchId"`
	MatchName string `json:"matchName"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname,omitempty"`
	Position  string `json:"position"`
}

type PhotoResponse struct {
	PhotoURL string `json:"photoUrl"`
}
