package catalog

import (
	"time"

	"github.com/jkoenig/werkbank/pkg/api"
)

// builtinTemplates returns the templates shipped with the service. Code
// bodies use {name} placeholders; string values are substituted as quoted
// Python literals.
func builtinTemplates() []*api.Template {
	return []*api.Template{
		plotSineWave(),
		webScrapeTitle(),
		webScreenshot(),
	}
}

func plotSineWave() *api.Template {
	return &api.Template{
		Name:             "plot_sine_wave",
		Description:      "Plot a sine curve and save it as a PNG",
		TaskCategory:     api.TaskPlot,
		SubCategory:      "sine_wave",
		MatchKeywords:    []string{"sine", "sin", "curve", "waveform", "正弦", "曲线"},
		Parameters:       map[string]api.ParameterSpec{},
		SuccessRate:      0.98,
		EstimatedRuntime: 2 * time.Second,
		CodeBody: `
import numpy as np
import matplotlib.pyplot as plt
import os

def plot_sine_wave():
    try:
        x = np.linspace(0, 2 * np.pi, 100)
        y = np.sin(x)

        plt.figure(figsize=(10, 6))
        plt.plot(x, y, 'b-', linewidth=2, label='sin(x)')

        plt.title('Sine Wave', fontsize=16, fontweight='bold')
        plt.xlabel('x', fontsize=12)
        plt.ylabel('sin(x)', fontsize=12)
        plt.grid(True, alpha=0.3)
        plt.legend(fontsize=12)
        plt.xlim(0, 2 * np.pi)
        plt.ylim(-1.2, 1.2)
        plt.xticks([0, np.pi/2, np.pi, 3*np.pi/2, 2*np.pi],
                   ['0', 'pi/2', 'pi', '3pi/2', '2pi'])

        output_path = '/tmp/sine_wave.png'
        plt.savefig(output_path, dpi=150, bbox_inches='tight')
        plt.close()

        print("Sine wave plotted successfully.")
        print(f"Saved to: {output_path}")
        if os.path.exists(output_path):
            print(f"File size: {os.path.getsize(output_path)} bytes")
        return output_path
    except Exception as e:
        print(f"Plotting failed: {e}")
        return None

if __name__ == "__main__":
    print("Plotting sine wave...")
    print("-" * 50)
    result = plot_sine_wave()
    print("-" * 50)
    print("Done." if result else "Plotting failed, see error above.")
`,
		Examples: []api.TemplateExample{
			{UserRequest: "plot a sine wave for me"},
			{UserRequest: "draw the sin(x) function"},
		},
	}
}

func webScrapeTitle() *api.Template {
	return &api.Template{
		Name:          "web_scrape_title",
		Description:   "Fetch a web page and print its title",
		TaskCategory:  api.TaskWeb,
		SubCategory:   "scrape_title",
		MatchKeywords: []string{"webpage", "title", "scrape", "网页", "抓取", "标题"},
		Parameters: map[string]api.ParameterSpec{
			"url": {
				Type:        "str",
				Required:    true,
				Description: "URL of the page to fetch",
			},
		},
		SuccessRate:      0.95,
		EstimatedRuntime: 3 * time.Second,
		CodeBody: `
import requests
from bs4 import BeautifulSoup

def scrape_title(url: str) -> str:
    try:
        headers = {
            'User-Agent': 'Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36'
        }
        response = requests.get(url, headers=headers, timeout=10)
        response.raise_for_status()

        soup = BeautifulSoup(response.content, 'html.parser')
        title = soup.find('title')
        if title:
            return title.get_text().strip()
        return "No title found"
    except requests.exceptions.Timeout:
        return "Error: request timed out, check the network and retry"
    except requests.exceptions.ConnectionError:
        return "Error: could not connect, check that the URL is correct"
    except requests.exceptions.HTTPError as e:
        return f"Error: HTTP {e.response.status_code}"
    except Exception as e:
        return f"Error: {e}"

if __name__ == "__main__":
    url = {url}

    print("Fetching page title...")
    print(f"URL: {url}")
    print("-" * 50)
    title = scrape_title(url)
    print(f"Title: {title}")
`,
		Examples: []api.TemplateExample{
			{
				UserRequest: "scrape the title of https://www.python.org",
				Parameters:  map[string]any{"url": "https://www.python.org"},
			},
		},
	}
}

func webScreenshot() *api.Template {
	return &api.Template{
		Name:          "web_screenshot",
		Description:   "Capture a full-page screenshot of a web page",
		TaskCategory:  api.TaskWeb,
		SubCategory:   "screenshot",
		MatchKeywords: []string{"screenshot", "capture", "webpage", "截图", "截屏", "抓图"},
		Parameters: map[string]api.ParameterSpec{
			"url": {
				Type:        "str",
				Required:    true,
				Description: "URL of the page to capture",
			},
		},
		SuccessRate:      0.95,
		EstimatedRuntime: 8 * time.Second,
		CodeBody: `
import sys
import subprocess

try:
    from playwright.async_api import async_playwright
except ImportError:
    print("Installing playwright, this can take up to a minute...")
    result = subprocess.run(
        [sys.executable, '-m', 'pip', 'install', 'playwright'],
        capture_output=True, text=True,
    )
    if result.returncode != 0:
        print("playwright install failed:")
        print(result.stderr)
        sys.exit(1)
    result = subprocess.run(
        ['playwright', 'install', 'chromium'],
        capture_output=True, text=True,
    )
    if result.returncode != 0:
        print("chromium install failed:")
        print(result.stderr)
        sys.exit(1)
    from playwright.async_api import async_playwright

import base64
import io

async def take_screenshot(url: str) -> dict:
    print(f"Target URL: {url}")
    try:
        async with async_playwright() as p:
            browser = await p.chromium.launch(
                headless=True,
                args=['--no-sandbox', '--disable-dev-shm-usage', '--disable-gpu'],
            )
            try:
                page = await browser.new_page(
                    viewport={'width': 1920, 'height': 1080},
                    user_agent='Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36',
                )
                await page.goto(url, wait_until='networkidle', timeout=30000)
                print(f"Loaded: {page.url}")
                print(f"Title: {await page.title()}")
                await page.wait_for_timeout(2000)

                screenshot_bytes = await page.screenshot(full_page=True, type='png')
                print(f"Screenshot captured: {len(screenshot_bytes)} bytes")

                with open('screenshot.png', 'wb') as f:
                    f.write(screenshot_bytes)

                try:
                    from PIL import Image
                    img = Image.open(io.BytesIO(screenshot_bytes))
                    display(img)
                except Exception as e:
                    print(f"Inline display unavailable: {e}")

                return {
                    'success': True,
                    'screenshot': base64.b64encode(screenshot_bytes).decode('utf-8'),
                    'size': len(screenshot_bytes),
                }
            finally:
                await browser.close()
    except Exception as e:
        print(f"Screenshot failed: {e}")
        return {'success': False, 'size': 0, 'message': str(e)}

url = {url}

result = await take_screenshot(url)
if result['success']:
    print(f"Done: {result['size']} bytes")
else:
    print(f"Failed: {result['message']}")
`,
		Examples: []api.TemplateExample{
			{
				UserRequest: "take a screenshot of https://www.python.org",
				Parameters:  map[string]any{"url": "https://www.python.org"},
			},
			{
				UserRequest: "capture https://github.com for me",
				Parameters:  map[string]any{"url": "https://github.com"},
			},
		},
	}
}
