package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/melizondo/voltcart/internal/models"
	pkglogger "github.com/melizondo/voltcart/pkg/logger"
)

// AWSSESEmailService sends transactional storefront email using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendOrderConfirmation emails the customer a summary of their accepted
// order. The total shown is always the server-recomputed one.
func (s *AWSSESEmailService) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	var rows strings.Builder
	for _, item := range order.Items {
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%d</td><td>$%.2f</td></tr>",
			item.ProductName, item.Quantity, item.Price,
		))
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Gracias por tu compra</h2>
	<p>Pedido <strong>%s</strong></p>
	<table border="0" cellpadding="6">
		<tr><th>Producto</th><th>Cantidad</th><th>Precio</th></tr>
		%s
	</table>
	<p><strong>Total: $%.2f</strong></p>
</body>
</html>`, order.ID, rows.String(), order.Total)

	textBody := fmt.Sprintf("Gracias por tu compra. Pedido %s, total $%.2f.", order.ID, order.Total)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{order.CustomerEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(fmt.Sprintf("Confirmación de pedido %s", order.ID)),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send order confirmation: %w", err)
	}

	s.logger.Info("order confirmation sent", slog.String("order_id", order.ID.String()))
	return nil
}

// SendLockoutNotice tells an account holder their login has been locked
// after repeated failures. Sent once per lockout, when the threshold is
// first crossed.
func (s *AWSSESEmailService) SendLockoutNotice(ctx context.Context, email string, minutes int) error {
	textBody := fmt.Sprintf(
		"Detectamos varios intentos fallidos de inicio de sesión en tu cuenta. "+
			"El acceso queda bloqueado durante %d minutos. "+
			"Si no fuiste tú, te recomendamos cambiar tu contraseña.", minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("Aviso de seguridad: cuenta bloqueada temporalmente"),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send lockout notice: %w", err)
	}

	s.logger.Info("lockout notice sent", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
