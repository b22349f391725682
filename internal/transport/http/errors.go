package httptransport

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "邮箱或密码错误"
	MsgTokenInvalid       = "无效的访问令牌"

	// 邮件相关
	MsgEmailNotFound   = "邮件不存在"
	MsgEmailListFailed = "获取邮件列表失败"
	MsgEmailGetFailed  = "获取邮件详情失败"
	MsgResolveFailed   = "标记已解决失败"
	MsgStatsGetFailed  = "获取统计数据失败"

	// 邮箱接入配置相关
	MsgCredentialSaveFailed = "保存邮箱配置失败"
	MsgProfileGetFailed     = "获取用户信息失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
