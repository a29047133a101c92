package translate

import (
	"context"
	"fmt"

	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

// TencentTranslator 腾讯云机器翻译。
type TencentTranslator struct {
	client *tmt.Client
}

// NewTencentTranslator 创建腾讯云机器翻译客户端。
func NewTencentTranslator(secretID, secretKey, region string) (*TencentTranslator, error) {
	if secretID == "" || secretKey == "" {
		return nil, fmt.Errorf("腾讯云机器翻译需要 SecretID 和 SecretKey")
	}

	credential := common.NewCredential(secretID, secretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tmt.tencentcloudapi.com"

	client, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		return nil, fmt.Errorf("创建翻译客户端失败: %w", err)
	}

	logger.Info("[translate] 腾讯云机器翻译已初始化")
	return &TencentTranslator{client: client}, nil
}

// Translate 实现 Translator，源语言自动检测。
func (t *TencentTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr("auto")
	request.Target = common.StringPtr(target)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.client.TextTranslateWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("翻译请求失败: %w", err)
	}

	if response.Response == nil || response.Response.TargetText == nil {
		return "", fmt.Errorf("翻译响应为空")
	}

	result := *response.Response.TargetText
	detectedSource := ""
	if response.Response.Source != nil {
		detectedSource = *response.Response.Source
	}

	logger.Debugf("[translate] 翻译完成: %s -> %s, 结果: %s", detectedSource, target, result)
	return result, nil
}
