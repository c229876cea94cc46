package user

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/caremint/backend/core"
)

// Roles
const (
	// Admin tiers; any of these exempts a user from compliance scans.
	RoleAdmin         = "admin:"
	RoleAdminOwner    = "admin:owner"
	RoleAdminTenant   = "admin:tenant"
	RoleAdminPlatform = "admin:platform"

	// Sales; the roster scanned by the compliance evaluator.
	RoleSales        = "sales:"
	RoleSalesAgent   = "sales:agent"
	RoleSalesManager = "sales:manager"

	// Clinic staff
	RoleStaff          = "staff:"
	RoleStaffReception = "staff:reception"
	RoleStaffBilling   = "staff:billing"
)

// Metadata keys owned by the compliance engine. Other keys in the bag are
// never touched.
const (
	MetaBlockedReason = "blocked_reason"
	MetaBlockedAt     = "blocked_at"
)

var (
	AdminRoles = []string{RoleAdmin, RoleAdminOwner, RoleAdminTenant, RoleAdminPlatform}
	SalesRoles = []string{RoleSales, RoleSalesAgent, RoleSalesManager}
	StaffRoles = []string{RoleStaff, RoleStaffReception, RoleStaffBilling}
	AllRoles   = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:    30,
		RoleAdminPlatform: 29,
		RoleAdminTenant:   28,
		RoleAdmin:         21,

		// Sales: 20 - 11
		RoleSalesManager: 15,
		RoleSalesAgent:   12,
		RoleSales:        11,

		// Staff: 10 - 1
		RoleStaffBilling:   3,
		RoleStaffReception: 2,
		RoleStaff:          1,
	}

	Roles = []Role{
		{Name: "Staff", Value: RoleStaff},
		{Name: "Reception", Value: RoleStaffReception},
		{Name: "Billing", Value: RoleStaffBilling},
		{Name: "Sales", Value: RoleSales},
		{Name: "Sales Agent", Value: RoleSalesAgent},
		{Name: "Sales Manager", Value: RoleSalesManager},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Tenant Admin", Value: RoleAdminTenant},
		{Name: "Platform Admin", Value: RoleAdminPlatform},
		{Name: "Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 10)
	all = append(all, AdminRoles...)
	all = append(all, SalesRoles...)
	all = append(all, StaffRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Name         string            `json:"name"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	IsActive     *bool             `json:"is_active"`
	Roles        []string          `json:"roles"`
	Metadata     map[string]string `json:"metadata"`
	PasswordHash []byte            `json:"-"`
	CreatedAt    time.Time         `json:"created_at"` // UTC
	UpdatedAt    time.Time         `json:"updated_at"` // UTC
	LastLogin    time.Time         `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active is nil-safe; a user with an unset flag is treated as inactive.
func (u *User) Active() bool {
	return u.IsActive != nil && *u.IsActive
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(strings.ToLower(role), prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsSales() bool {
	return u.RoleStartsWith(RoleSales)
}

func (u *User) IsStaff() bool {
	return u.RoleStartsWith(RoleStaff)
}

func (u *User) BlockedReason() string {
	return u.Metadata[MetaBlockedReason]
}

// Blocked reports whether the user was deactivated by the compliance engine.
func (u *User) Blocked() bool {
	_, ok := u.Metadata[MetaBlockedReason]
	return ok && !u.Active()
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	TenantID        string   `json:"tenant_id" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.TenantID = core.CleanString(nu.TenantID, true /* lower */)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate, origUsr User, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// GetFilter selects a single user; fields are ORed.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	TenantID    string    `query:"tenant_id"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`

	// paging; Limit == 0 means no limit
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TenantID == "" && qf.Roles == nil && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero() && qf.Limit == 0 && qf.Offset == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TenantID = core.CleanString(qf.TenantID, true /* lower */)
}

// InitValidators registers user-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(userStructValidation, NewUser{})
	validate.RegisterStructValidation(userStructValidation, UpdateUser{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}
