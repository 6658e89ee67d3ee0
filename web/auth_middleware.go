package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// verifiedKey 记录最近一次通过 bcrypt 校验的 (哈希, 明文) 对。
// bcrypt 单次比对要几十毫秒，不能每个请求都做一遍，
// 哈希热更新后缓存自动失效，重新走慢路径。
type verifiedKey struct {
	hash string
	key  string
}

var (
	verifiedMu   sync.RWMutex
	lastVerified verifiedKey
)

// currentAPIKeyHash 取当前生效的 API Key 哈希，空串表示认证关闭
func currentAPIKeyHash() string {
	if configReloader != nil {
		return configReloader.GetCurrentConfig().Web.APIKey
	}
	return ""
}

// extractAPIKey 从 X-API-Key 头或 Bearer 令牌取出客户端密钥
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authMiddleware API Key 认证中间件。
// 配置里的 web.api_key 是密钥的 bcrypt 哈希（hashkey 子命令生成），
// 为空时认证关闭，本地研究场景不强制设密钥。
func authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := currentAPIKeyHash()
		if hash == "" {
			c.Next()
			return
		}

		key := extractAPIKey(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少 API Key"})
			c.Abort()
			return
		}

		// 快路径：和上次校验通过的密钥做常数时间比对
		verifiedMu.RLock()
		cached := lastVerified
		verifiedMu.RUnlock()
		if cached.hash == hash &&
			subtle.ConstantTimeCompare([]byte(cached.key), []byte(key)) == 1 {
			c.Next()
			return
		}

		// 慢路径：bcrypt 校验
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API Key 错误"})
			c.Abort()
			return
		}

		verifiedMu.Lock()
		lastVerified = verifiedKey{hash: hash, key: key}
		verifiedMu.Unlock()

		c.Next()
	}
}

// HashAPIKey 生成 API Key 的 bcrypt 哈希，写进配置文件的 web.api_key
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
