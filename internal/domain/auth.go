package domain

// AuthRole represents a caller authorization role.
type AuthRole string

const (
	AuthRoleAdmin    AuthRole = "admin"
	AuthRoleTeller   AuthRole = "teller"
	AuthRoleCustomer AuthRole = "customer"
)

// AllAuthRoles lists every valid authorization role for validation purposes.
var AllAuthRoles = []AuthRole{AuthRoleAdmin, AuthRoleTeller, AuthRoleCustomer}

// The closed set of tool names. The registry is assembled from exactly
// this set at startup; there is no dynamic registration surface.
const (
	ToolBankTransfer       = "bank_transfer"
	ToolBankBalance        = "bank_balance"
	ToolTransactionHistory = "get_transaction_history"
	ToolCreateAccount      = "create_account"
	ToolMonthlyPayment     = "calculate_monthly_payment"
	ToolBranchLocation     = "get_branch_location"
	ToolServiceRequest     = "service_request"
	ToolOfferInformation   = "get_offer_information"
	ToolGotoSales          = "transfer_to_sales_agent"
	ToolGotoSupport        = "transfer_to_customer_support_agent"
	ToolGotoTransactions   = "transfer_to_transactions_agent"
	ToolHealthCheck        = "health_check"
)

// toolGrants maps each tool to the roles allowed to call it.
// Admin is implicitly granted everything.
var toolGrants = map[string][]AuthRole{
	ToolBankTransfer:       {AuthRoleTeller, AuthRoleCustomer},
	ToolBankBalance:        {AuthRoleTeller, AuthRoleCustomer},
	ToolTransactionHistory: {AuthRoleTeller, AuthRoleCustomer},
	ToolCreateAccount:      {AuthRoleTeller},
	ToolMonthlyPayment:     {AuthRoleTeller, AuthRoleCustomer},
	ToolBranchLocation:     {AuthRoleTeller, AuthRoleCustomer},
	ToolServiceRequest:     {AuthRoleTeller, AuthRoleCustomer},
	ToolOfferInformation:   {AuthRoleTeller, AuthRoleCustomer},
	ToolGotoSales:          {AuthRoleTeller, AuthRoleCustomer},
	ToolGotoSupport:        {AuthRoleTeller, AuthRoleCustomer},
	ToolGotoTransactions:   {AuthRoleTeller, AuthRoleCustomer},
	ToolHealthCheck:        {AuthRoleTeller, AuthRoleCustomer},
}

// KnownTool reports whether name belongs to the closed tool set.
func KnownTool(name string) bool {
	_, ok := toolGrants[name]
	return ok
}

// CanCall reports whether any of the caller's roles is granted the tool.
// Unknown tools are never granted.
func CanCall(toolName string, roles []AuthRole) bool {
	granted, ok := toolGrants[toolName]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == AuthRoleAdmin {
			return true
		}
		for _, g := range granted {
			if r == g {
				return true
			}
		}
	}
	return false
}
