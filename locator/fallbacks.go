package locator

// Fallbacks are the built-in selectors used when the loaded table does not
// define them. They track the target UI as last observed; a selector table
// entry with the same group/name always wins.
func Fallbacks() []Entry {
	return []Entry{
		{Group: "login", Name: "company_id", Kind: KindCSS, Expression: "#Model_LoginForm_company_login_id"},
		{Group: "login", Name: "username", Kind: KindCSS, Expression: "#Model_LoginForm_username"},
		{Group: "login", Name: "password", Kind: KindCSS, Expression: "#Model_LoginForm_password"},
		{Group: "login", Name: "submit", Kind: KindCSS, Expression: "button[type='submit']"},
		{Group: "login", Name: "duplicate_ok", Kind: KindCSS,
			Expression: "#pageDeny div.ui-dialog-buttonpane div button span"},
		{Group: "menu", Name: "post_login_marker", Kind: KindCSS, Expression: "#main-menu-id"},
		{Group: "menu", Name: "logout", Kind: KindCSS, Expression: "a[href*='logout']"},
		{Group: "menu", Name: "other_operations", Kind: KindCSS,
			Expression: "#main > div > main > section.original-search > header > div.others > button"},
		{Group: "candidate", Name: "menu_link", Kind: KindCSS, Expression: "a[href*='candidate/list']"},
		{Group: "candidate", Name: "list_table", Kind: KindCSS, Expression: "#candidate-list table"},
		{Group: "candidate", Name: "next_page", Kind: KindCSS, Expression: "#candidate-list a.next:not(.disabled)"},
		{Group: "entryprocess", Name: "menu_link", Kind: KindCSS, Expression: "a[href*='selectionprocess/list']"},
		{Group: "entryprocess", Name: "list_table", Kind: KindCSS, Expression: "#selectionprocess-list table"},
		{Group: "entryprocess", Name: "next_page", Kind: KindCSS, Expression: "#selectionprocess-list a.next:not(.disabled)"},
	}
}
