package validation

// Field definitions shared by the user and article forms.
var (
	UserEmail = Field{Name: "email", Rules: []Rule{NonEmpty(), Email()}}

	UserName = Field{Name: "name", Rules: []Rule{
		NonEmpty(),
		MinLen(2, "can't be less than 2 chars"),
	}}

	UserPassword = Field{Name: "password", Rules: []Rule{
		NonEmpty(),
		MinLen(6, "can't be less than 6 chars"),
		MaxLen(20, "can't be more than 20 chars"),
		PasswordComplexity(),
	}}

	UserBio = Field{Name: "bio", Optional: true, Rules: []Rule{MaxLen(1000, "")}}

	UserAvatar = Field{Name: "avatar", Optional: true, Rules: []Rule{URL()}}
)

// BaseUserSchema holds the identity fields common to every user form
var BaseUserSchema = Schema{UserName, UserEmail}

// CreateUserSchema validates the registration form
var CreateUserSchema = BaseUserSchema.Extend(UserPassword)

// UpdateUserSchema validates the settings form. Leaving the password blank
// keeps the current one.
var UpdateUserSchema = BaseUserSchema.Extend(
	Field{Name: "password", Optional: true, Rules: UserPassword.Rules[1:]},
	UserBio,
	UserAvatar,
)

// LoginSchema validates the sign-in form. The password is only required
// to be present; its strength was checked when it was set.
var LoginSchema = Schema{
	UserEmail,
	{Name: "password", Rules: []Rule{NonEmpty()}},
}

// ArticleSchema validates the article editor
var ArticleSchema = Schema{
	{Name: "title", Rules: []Rule{NonEmpty(), MaxLen(255, "")}},
	{Name: "description", Rules: []Rule{NonEmpty(), MaxLen(1000, "")}},
	{Name: "body", Rules: []Rule{NonEmpty()}},
	{Name: "tags", Optional: true},
}

// CommentSchema validates a comment submission
var CommentSchema = Schema{
	{Name: "comment", Rules: []Rule{NonEmpty()}},
}
